package resultcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cppcore/internal/finding"
)

type recordingSink struct {
	findings []finding.Finding
}

func (s *recordingSink) Report(f finding.Finding) { s.findings = append(s.findings, f) }

func TestReportCachedMissesWhenEmpty(t *testing.T) {
	c := New()
	sink := &recordingSink{}
	assert.False(t, c.ReportCached("a.c", "", "int x;", sink))
}

func TestCacheThenReportCachedReplaysFindings(t *testing.T) {
	c := New()
	reports := []finding.Finding{{ID: "nullPointer", Severity: finding.SeverityError, ShortMessage: "boom", File0: "a.c"}}
	c.Cache("a.c", "FOO", "int x;", reports)

	sink := &recordingSink{}
	hit := c.ReportCached("a.c", "FOO", "int x;", sink)
	require.True(t, hit)
	require.Len(t, sink.findings, 1)
	assert.Equal(t, "nullPointer", sink.findings[0].ID)
}

func TestReportCachedMissesOnCodeChange(t *testing.T) {
	c := New()
	c.Cache("a.c", "", "int x;", nil)
	sink := &recordingSink{}
	assert.False(t, c.ReportCached("a.c", "", "int y;", sink))
}

func TestReportCachedIsKeyedByConfig(t *testing.T) {
	c := New()
	c.Cache("a.c", "FOO", "int x;", nil)
	sink := &recordingSink{}
	assert.False(t, c.ReportCached("a.c", "BAR", "int x;", sink))
}

func TestPathNormalizationMakesBackslashAndSlashEquivalent(t *testing.T) {
	c := New()
	c.Cache("src\\\\a.c", "", "int x;", nil)
	sink := &recordingSink{}
	assert.True(t, c.ReportCached("src/a.c", "", "int x;", sink))
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.xml")

	c, err := Load(path)
	require.NoError(t, err)
	c.path = path
	c.Cache("a.c", "FOO", "int x;", []finding.Finding{{ID: "nullPointer", ShortMessage: "boom", File0: "a.c"}})
	require.NoError(t, c.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	sink := &recordingSink{}
	assert.True(t, reloaded.ReportCached("a.c", "FOO", "int x;", sink))
	require.Len(t, sink.findings, 1)
	assert.Equal(t, "nullPointer", sink.findings[0].ID)
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist.xml"))
	require.NoError(t, err)
	sink := &recordingSink{}
	assert.False(t, c.ReportCached("a.c", "", "x", sink))
}
