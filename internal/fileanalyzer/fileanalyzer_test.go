package fileanalyzer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/cppcore/internal/checker"
	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/resultcache"
	"github.com/standardbeagle/cppcore/internal/sidecar"
	"github.com/standardbeagle/cppcore/internal/sink"
	"github.com/standardbeagle/cppcore/internal/suppress"
	"github.com/standardbeagle/cppcore/internal/tokenview"
)

// TestMain verifies AnalyzeAll's errgroup-based worker pool leaves no
// goroutines behind once every test in this package has run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// alwaysReportsChecker is a minimal stand-in checker for exercising the
// File Analyzer's loop without depending on unusedFunction's richer
// contract.
type alwaysReportsChecker struct{ id string }

func (c alwaysReportsChecker) Name() string { return c.id }

func (c alwaysReportsChecker) Run(view *tokenview.View, settings checker.Settings, sink checker.Sink) error {
	sink.Report(finding.Finding{
		ID: c.id, Severity: finding.SeverityWarning, Certainty: finding.CertaintyNormal,
		ShortMessage: "fired", File0: view.FilePath,
	})
	return nil
}

func (c alwaysReportsChecker) FileInfo(view *tokenview.View, settings checker.Settings, cfg string) (checker.FileInfo, error) {
	return nil, nil
}

func (c alwaysReportsChecker) ParseFileInfo(xmlFragment []byte) (checker.FileInfo, error) {
	return nil, nil
}

func (c alwaysReportsChecker) WholeProgram(ctu checker.CTUInfo, infos []checker.FileInfo, settings checker.Settings, sink checker.Sink) error {
	return nil
}

func newAnalyzer(t *testing.T, extra func(*Options)) (*Analyzer, *[]string) {
	t.Helper()
	reg := checker.NewRegistry()
	reg.Register(alwaysReportsChecker{id: "demoCheck"})

	var logged []string
	opts := Options{
		Registry:     reg,
		Settings:     checker.Settings{},
		Suppressions: suppress.NewStore(),
		ToolInfo:     "cppcore-test",
		SinkOptions: sink.Options{
			Logger: func(rendered string, f finding.Finding) { logged = append(logged, rendered) },
		},
	}
	if extra != nil {
		extra(&opts)
	}
	return New(opts), &logged
}

func TestAnalyzeFileRunsCheckersAndSetsExitCode(t *testing.T) {
	a, logged := newAnalyzer(t, nil)
	res, err := a.AnalyzeFile("demo.c", []byte("int main() { return 0; }\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.NotEmpty(t, *logged)
}

func TestAnalyzeFileTooManyConfigsCapsIteration(t *testing.T) {
	a, logged := newAnalyzer(t, func(o *Options) { o.MaxConfigs = 1 })
	src := []byte(`
#ifdef A
int a(void);
#endif
#ifdef B
int b(void);
#endif
int main(void) { return 0; }
`)
	_, err := a.AnalyzeFile("multi.c", src)
	require.NoError(t, err)
	found := false
	for _, l := range *logged {
		if contains(l, "too many configurations") {
			found = true
		}
	}
	assert.True(t, found, "expected a toomanyconfigs message, got %v", *logged)
}

func TestAnalyzeFilePurgesDuplicateStructuralConfigurations(t *testing.T) {
	a, logged := newAnalyzer(t, nil)
	// Both branches simplify to the same token shape, so the second
	// configuration should be purged rather than re-running checkers.
	src := []byte(`
#ifdef A
int value = 1;
#else
int value = 2;
#endif
`)
	_, err := a.AnalyzeFile("dup.c", src)
	require.NoError(t, err)
	demoCount := 0
	for _, l := range *logged {
		if contains(l, "demoCheck") {
			demoCount++
		}
	}
	assert.LessOrEqual(t, demoCount, 1)
}

func TestAnalyzeFileResultCacheShortCircuitsSecondRun(t *testing.T) {
	cache := resultcache.New()
	a, logged := newAnalyzer(t, func(o *Options) { o.Cache = cache })
	src := []byte("int main(void) { return 0; }\n")

	_, err := a.AnalyzeFile("cached.c", src)
	require.NoError(t, err)
	firstCount := len(*logged)
	require.Greater(t, firstCount, 0)

	// Matches exactly what Preprocess("",rs) produces for src: Load splits
	// on "\n", leaving a trailing empty element that Join puts back as a
	// trailing newline.
	cache.Cache("cached.c", "", "int main(void) { return 0; }\n", []finding.Finding{
		{ID: "cachedReplay", Severity: finding.SeverityWarning, File0: "cached.c", ShortMessage: "replayed"},
	})

	a2, logged2 := newAnalyzer(t, func(o *Options) { o.Cache = cache })
	_, err = a2.AnalyzeFile("cached.c", src)
	require.NoError(t, err)
	found := false
	for _, l := range *logged2 {
		if contains(l, "replayed") {
			found = true
		}
	}
	assert.True(t, found, "expected cached finding to be replayed, got %v", *logged2)
	demoRan := false
	for _, l := range *logged2 {
		if contains(l, "fired") {
			demoRan = true
		}
	}
	assert.False(t, demoRan, "checkers should not re-run on a cache hit")
}

func TestAnalyzeFileWritesSidecarWhenBuildDirConfigured(t *testing.T) {
	dir := t.TempDir()
	idx := sidecar.NewIndex(dir)
	a, _ := newAnalyzer(t, func(o *Options) {
		o.BuildDir = dir
		o.SidecarIndex = idx
	})
	_, err := a.AnalyzeFile("sc.c", []byte("int main(void) { return 0; }\n"))
	require.NoError(t, err)

	stem := idx.Stem("sc.c", "")
	_, ok := sidecar.OpenAny(filepath.Join(dir, stem+".xml"))
	assert.True(t, ok)
}

func TestAnalyzeAllMergesExitCodesAcrossFiles(t *testing.T) {
	a, _ := newAnalyzer(t, nil)
	files := map[string][]byte{
		"one.c": []byte("int main(void) { return 0; }\n"),
		"two.c": []byte("int other(void) { return 1; }\n"),
	}
	code, err := a.AnalyzeAll(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
