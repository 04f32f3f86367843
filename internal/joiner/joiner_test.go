package joiner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cppcore/internal/checker"
	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/sidecar"
)

type recordingSink struct {
	findings []finding.Finding
}

func (s *recordingSink) Report(f finding.Finding) { s.findings = append(s.findings, f) }

func TestInMemoryRunsWholeProgramOncePerChecker(t *testing.T) {
	reg := checker.NewRegistry()
	reg.Register(checker.UnusedFuncChecker{})

	sink := &recordingSink{}
	err := InMemory(reg, map[string][]checker.FileInfo{}, checker.Settings{}, sink)
	require.NoError(t, err)
	assert.Empty(t, sink.findings)
}

func TestFromSidecarsReadsCrossFileFunctionDeclAndCallFragments(t *testing.T) {
	dir := t.TempDir()
	idx := sidecar.NewIndex(dir)

	stemA := idx.Stem("a.c", "")
	docA, _ := sidecar.Open(filepath.Join(dir, stemA+".xml"), "h1")
	docA.AddFileInfo("unusedFunction", []byte(`<functiondecl name="foo" file="a.c" line="1"/>`))
	require.NoError(t, docA.Close())

	stemB := idx.Stem("b.c", "")
	docB, _ := sidecar.Open(filepath.Join(dir, stemB+".xml"), "h2")
	docB.AddFileInfo("unusedFunction", []byte(`<functioncall name="bar"/>`))
	require.NoError(t, docB.Close())
	require.NoError(t, idx.Flush())

	reg := checker.NewRegistry()
	reg.Register(checker.UnusedFuncChecker{})

	sink := &recordingSink{}
	err := FromSidecars(dir, reg, checker.Settings{}, sink)
	require.NoError(t, err)
	require.Len(t, sink.findings, 1)
	assert.Equal(t, "unusedFunction", sink.findings[0].ID)
	assert.Contains(t, sink.findings[0].ShortMessage, "foo")
}
