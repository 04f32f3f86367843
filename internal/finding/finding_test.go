package finding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/standardbeagle/cppcore/internal/location"
)

func TestValidRequiresStackOrFile0(t *testing.T) {
	f := Finding{}
	assert.False(t, f.Valid())

	f.File0 = "main.cpp"
	assert.True(t, f.Valid())

	f2 := Finding{CallStack: []location.Location{location.New(0, "a.c", "a.c", 1, 1, "")}}
	assert.True(t, f2.Valid())
}

func TestPrimaryIsInnermost(t *testing.T) {
	outer := location.New(0, "a.c", "a.c", 1, 1, "")
	inner := location.New(0, "a.c", "a.c", 5, 3, "")
	f := Finding{CallStack: []location.Location{outer, inner}}
	primary, ok := f.Primary()
	assert.True(t, ok)
	assert.Equal(t, inner, primary)
}

func TestComputeHashDisabledIsZero(t *testing.T) {
	f := Finding{ID: "nullPointer"}
	assert.Equal(t, uint64(0), f.ComputeHash(false))
}

func TestComputeHashStableAcrossRuns(t *testing.T) {
	f1 := Finding{ID: "nullPointer", CallStack: []location.Location{location.New(0, "a.c", "a.c", 3, 1, "")}}
	f2 := Finding{ID: "nullPointer", CallStack: []location.Location{location.New(0, "a.c", "a.c", 3, 1, "")}}
	assert.Equal(t, f1.ComputeHash(true), f2.ComputeHash(true))
	assert.NotZero(t, f1.Hash)
}

func TestComputeHashDiffersOnLine(t *testing.T) {
	f1 := Finding{ID: "nullPointer", CallStack: []location.Location{location.New(0, "a.c", "a.c", 3, 1, "")}}
	f2 := Finding{ID: "nullPointer", CallStack: []location.Location{location.New(0, "a.c", "a.c", 4, 1, "")}}
	assert.NotEqual(t, f1.ComputeHash(true), f2.ComputeHash(true))
}
