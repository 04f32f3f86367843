package suppress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobMatchDoubleStarCrossesSlash(t *testing.T) {
	assert.True(t, globMatch("a**b", "a/x/y/b"))
	assert.False(t, globMatch("a*b", "a/x/b"))
	assert.True(t, globMatch("a?b", "axb"))
	assert.False(t, globMatch("a?b", "a/b"))
}

func TestParseLineEntry(t *testing.T) {
	s, err := ParseLineEntry("nullPointer:src/main.cpp:10")
	require.NoError(t, err)
	assert.Equal(t, "nullPointer", s.ErrorIDGlob)
	assert.Equal(t, "src/main.cpp", s.FileNameGlob)
	assert.Equal(t, int32(10), s.Line)
}

func TestParseLineFileSkipsCommentsAndBlank(t *testing.T) {
	content := "# comment\n\nnullPointer\n// also a comment\nuninitvar:foo.c // trailing\n"
	supps, errs := ParseLineFile(content)
	require.Empty(t, errs)
	require.Len(t, supps, 2)
	assert.Equal(t, "nullPointer", supps[0].ErrorIDGlob)
	assert.Equal(t, "uninitvar", supps[1].ErrorIDGlob)
	assert.Equal(t, "foo.c", supps[1].FileNameGlob)
}

func TestParseXMLFile(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<suppressions>
  <suppress>
    <id>nullPointer</id>
    <fileName>a.cpp</fileName>
    <lineNumber>12</lineNumber>
  </suppress>
</suppressions>`)
	supps, err := ParseXMLFile(doc)
	require.NoError(t, err)
	require.Len(t, supps, 1)
	assert.Equal(t, "nullPointer", supps[0].ErrorIDGlob)
	assert.Equal(t, int32(12), supps[0].Line)
}

func TestParseXMLFileRejectsUnknownElement(t *testing.T) {
	doc := []byte(`<suppressions><suppress><bogus>x</bogus></suppress></suppressions>`)
	_, err := ParseXMLFile(doc)
	assert.Error(t, err)
}

func TestParseInlineSingle(t *testing.T) {
	comments := []InlineComment{{File: "a.c", Line: 2, Text: "cppcheck-suppress nullPointer"}}
	supps, errs := ParseInlineComments(comments)
	require.Empty(t, errs)
	require.Len(t, supps, 1)
	assert.Equal(t, "nullPointer", supps[0].ErrorIDGlob)
	assert.Equal(t, int32(3), supps[0].Line)
}

func TestParseInlineBracketed(t *testing.T) {
	comments := []InlineComment{{File: "a.c", Line: 1, Text: "cppcheck-suppress[nullPointer, uninitvar symbolName=p]"}}
	supps, errs := ParseInlineComments(comments)
	require.Empty(t, errs)
	require.Len(t, supps, 2)
}

func TestParseInlineInvalidIDReportsErrorNotPanic(t *testing.T) {
	comments := []InlineComment{{File: "a.c", Line: 1, Text: "cppcheck-suppress 1bad!id"}}
	_, errs := ParseInlineComments(comments)
	assert.NotEmpty(t, errs)
}

// End-to-end scenario 2 (spec §8): suppressed finding via inline comment.
func TestSuppressedFindingViaInlineComment(t *testing.T) {
	store := NewStore()
	comments := []InlineComment{{File: "a.c", Line: 2, Text: "cppcheck-suppress nullPointer"}}
	supps, errs := ParseInlineComments(comments)
	require.Empty(t, errs)
	for _, s := range supps {
		require.NoError(t, store.Add(s))
	}
	store.MarkLineReached("a.c", 3)

	suppressed := store.IsSuppressed(LookupForm{File: "a.c", Line: 3, ErrorID: "nullPointer"})
	assert.True(t, suppressed)
	assert.Empty(t, store.GetUnmatchedLocal("a.c"))
}

// End-to-end scenario 3 (spec §8): unmatched inline suppression.
func TestUnmatchedInlineSuppression(t *testing.T) {
	store := NewStore()
	comments := []InlineComment{{File: "a.c", Line: 1, Text: "cppcheck-suppress nullPointer"}}
	supps, errs := ParseInlineComments(comments)
	require.Empty(t, errs)
	for _, s := range supps {
		require.NoError(t, store.Add(s))
	}
	store.MarkLineReached("a.c", 2)

	// A different finding is reported on that line, so the suppression is
	// "checked" (selector matched) but never "matched" (id filter failed).
	suppressed := store.IsSuppressed(LookupForm{File: "a.c", Line: 2, ErrorID: "uninitvar"})
	assert.False(t, suppressed)

	unmatched := store.GetUnmatchedLocal("a.c")
	require.Len(t, unmatched, 1)
	assert.True(t, unmatched[0].Checked())
	assert.False(t, unmatched[0].Matched())
}

func TestUnreachedLineNeverReportedUnmatched(t *testing.T) {
	store := NewStore()
	comments := []InlineComment{{File: "a.c", Line: 1, Text: "cppcheck-suppress nullPointer"}}
	supps, errs := ParseInlineComments(comments)
	require.Empty(t, errs)
	for _, s := range supps {
		require.NoError(t, store.Add(s))
	}
	// The selector is checked (a mismatching finding lands on line 2) but
	// the line is never marked reached (e.g. a dead #ifdef branch), so it
	// must not surface as unmatched.
	store.IsSuppressed(LookupForm{File: "a.c", Line: 2, ErrorID: "uninitvar"})
	assert.Empty(t, store.GetUnmatchedLocal("a.c"))
}

func TestBlockSuppression(t *testing.T) {
	comments := []InlineComment{
		{File: "a.c", Line: 5, Text: "cppcheck-suppress-begin nullPointer"},
		{File: "a.c", Line: 10, Text: "cppcheck-suppress-end nullPointer"},
	}
	flat, errs := ParseInlineComments(comments)
	require.Empty(t, errs)
	resolved, errs := ResolveBlocks(flat)
	require.Empty(t, errs)
	require.Len(t, resolved, 1)
	assert.Equal(t, TypeBlock, resolved[0].Type)
	assert.Equal(t, int32(5), resolved[0].LineBegin)
	assert.Equal(t, int32(10), resolved[0].LineEnd)

	store := NewStore()
	require.NoError(t, store.Add(resolved[0]))
	store.MarkLineReached("a.c", 7)
	assert.True(t, store.IsSuppressed(LookupForm{File: "a.c", Line: 7, ErrorID: "nullPointer"}))
}

func TestMacroSuppression(t *testing.T) {
	store := NewStore()
	supp := &Suppression{Type: TypeMacro, MacroName: "ASSERT", ErrorIDGlob: "nullPointer", Line: -1}
	require.NoError(t, store.Add(supp))
	assert.True(t, store.IsSuppressed(LookupForm{
		Line: 3, ErrorID: "nullPointer",
		Macros: map[string]bool{"ASSERT": true},
	}))
	assert.False(t, store.IsSuppressed(LookupForm{
		Line: 4, ErrorID: "nullPointer",
		Macros: map[string]bool{"OTHER": true},
	}))
}

func TestHashMismatchIsCheckedNotMatched(t *testing.T) {
	store := NewStore()
	supp := &Suppression{Type: TypeUnique, ErrorIDGlob: "nullPointer", Line: -1, Hash: 42}
	require.NoError(t, store.Add(supp))
	suppressed := store.IsSuppressed(LookupForm{Line: 1, ErrorID: "nullPointer", Hash: 99})
	assert.False(t, suppressed)
	assert.True(t, supp.Checked())
	assert.False(t, supp.Matched())
}

func TestUnmatchedSuppressionSelfReference(t *testing.T) {
	store := NewStore()
	supp := &Suppression{Type: TypeUnique, ErrorIDGlob: "unmatchedSuppression", Line: -1}
	require.NoError(t, store.Add(supp))
	// A regular finding never consults the unmatchedSuppression-only bucket.
	assert.False(t, store.IsSuppressed(LookupForm{Line: 1, ErrorID: "nullPointer"}))
	assert.True(t, store.IsSuppressed(LookupForm{Line: 1, ErrorID: "unmatchedSuppression"}))
}

func TestSuggestRuleIDFindsClosest(t *testing.T) {
	best, sim := SuggestRuleID("nullPoiner", []string{"nullPointer", "uninitvar", "memleak"})
	assert.Equal(t, "nullPointer", best)
	assert.Greater(t, sim, RuleHintThreshold)
}
