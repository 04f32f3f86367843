package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/cppcore/internal/config"
	"github.com/standardbeagle/cppcore/internal/finding"
)

func setupTestProject(t *testing.T) string {
	root := t.TempDir()
	files := map[string]string{
		"main.cpp":            "int main() { return 0; }\n",
		"lib/widget.cpp":       "void widget() {}\n",
		"lib/widget.h":         "void widget();\n",
		"README.md":           "not a source file\n",
		"build/generated.cpp": "// should be excluded\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestDiscoverFilesMatchesCAndCppExtensions(t *testing.T) {
	root := setupTestProject(t)
	cfg := &config.Config{Project: config.Project{Root: root}, Exclude: []string{"**/build/**"}}

	files, err := discoverFiles(cfg)
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.Contains(t, rels, "main.cpp")
	assert.Contains(t, rels, "lib/widget.cpp")
	assert.Contains(t, rels, "lib/widget.h")
	assert.NotContains(t, rels, "README.md")
	assert.NotContains(t, rels, "build/generated.cpp")
}

func TestDiscoverFilesHonorsIncludeOverExtensionDefault(t *testing.T) {
	root := setupTestProject(t)
	cfg := &config.Config{Project: config.Project{Root: root}, Include: []string{"**/*.h"}}

	files, err := discoverFiles(cfg)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "widget.h", filepath.Base(files[0]))
}

func TestMatchesAnyDoublestarSemantics(t *testing.T) {
	assert.True(t, matchesAny("vendor/foo/bar.c", []string{"**/vendor/**"}))
	assert.False(t, matchesAny("src/main.c", []string{"**/vendor/**"}))
}

func TestEnabledSeverityMap(t *testing.T) {
	m := enabledSeverityMap([]string{"error", "warning"})
	assert.True(t, m[finding.SeverityError])
	assert.True(t, m[finding.SeverityWarning])
	assert.False(t, m[finding.SeverityStyle])

	assert.Nil(t, enabledSeverityMap(nil))
}

func TestParallelismPrefersJobsFlagOverConfig(t *testing.T) {
	app := &cli.App{
		Flags: []cli.Flag{&cli.IntFlag{Name: "jobs"}},
		Action: func(c *cli.Context) error {
			cfg := &config.Config{ParallelFileWorkers: 4}
			assert.Equal(t, 2, parallelism(c, cfg))
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"cppcore", "--jobs", "2"}))
}

func TestParallelismFallsBackToConfig(t *testing.T) {
	app := &cli.App{
		Flags: []cli.Flag{&cli.IntFlag{Name: "jobs"}},
		Action: func(c *cli.Context) error {
			cfg := &config.Config{ParallelFileWorkers: 4}
			assert.Equal(t, 4, parallelism(c, cfg))
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"cppcore"}))
}

func TestCollectingLoggerAccumulatesFindings(t *testing.T) {
	l := &collectingLogger{format: "sarif"}
	l.log("rendered text", finding.Finding{ID: "nullPointer"})
	l.log("rendered text 2", finding.Finding{ID: "uninitvar"})

	require.Len(t, l.findings, 2)
	assert.Equal(t, "nullPointer", l.findings[0].ID)
}
