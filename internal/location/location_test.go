package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripNative(t *testing.T) {
	paths := []string{
		"src/main.cpp",
		"a/b/c/d.h",
		"single.c",
		"",
	}
	for _, p := range paths {
		require.Equal(t, p, FromNative(ToNative(p)), "round-trip should be identity for %q", p)
	}
}

func TestNewNormalizesFileName(t *testing.T) {
	native := ToNative("src/main.cpp")
	loc := New(0, native, native, 10, 3, "")
	assert.Equal(t, "src/main.cpp", loc.FileName)
	assert.NotContains(t, loc.FileName, "\\")
}

func TestNoLineSentinel(t *testing.T) {
	loc := New(0, "f.c", "f.c", NoLine, 0, "")
	assert.Equal(t, int32(-1), loc.Line)
}
