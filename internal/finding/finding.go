// Package finding implements the canonical diagnostic record (spec §3.1
// entity "Finding") that every checker emits and every output format
// serializes from.
package finding

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/standardbeagle/cppcore/internal/location"
)

// Severity mirrors spec §3.1's severity enum.
type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityStyle       Severity = "style"
	SeverityPerformance Severity = "performance"
	SeverityPortability Severity = "portability"
	SeverityInformation Severity = "information"
	SeverityDebug       Severity = "debug"
	SeverityInternal    Severity = "internal"
	SeverityNone        Severity = "none"
)

// Certainty mirrors spec §3.1's certainty enum.
type Certainty string

const (
	CertaintyNormal       Certainty = "normal"
	CertaintyInconclusive Certainty = "inconclusive"
)

// Finding is a single diagnostic: one rule fired at one primary location
// with an optional call stack. Findings are value-typed; ownership
// transfers into the Finding Sink on Report.
type Finding struct {
	ID              string
	Severity        Severity
	Certainty       Certainty
	CWE             uint16
	CallStack       []location.Location // last element = innermost (primary)
	ShortMessage    string
	VerboseMessage  string
	SymbolNames     []string // newline-joined on the wire, slice in memory
	File0           string
	Remark          string
	Hash            uint64
}

// Primary returns the innermost call-stack location, i.e. the primary
// location a Finding is reported against. Reports ok=false when the
// Finding carries no call stack (it must then have a non-empty File0 per
// invariant 1).
func (f *Finding) Primary() (loc location.Location, ok bool) {
	if len(f.CallStack) == 0 {
		return location.Location{}, false
	}
	return f.CallStack[len(f.CallStack)-1], true
}

// Valid checks invariant 1: every Finding has either a non-empty call
// stack or a non-empty File0.
func (f *Finding) Valid() bool {
	if len(f.CallStack) > 0 {
		return true
	}
	return f.File0 != ""
}

// SymbolNamesJoined renders SymbolNames the way the wire format stores
// them: newline separated (spec §3.1).
func (f *Finding) SymbolNamesJoined() string {
	return strings.Join(f.SymbolNames, "\n")
}

// ComputeHash derives Finding.Hash from the fields that make a Finding
// "the same" across runs: id, primary location, and symbol names. Hashing
// with xxhash keeps it fast and reproducible; it is never used for
// cryptographic purposes. Returns 0 when hashing is disabled by the
// caller (spec invariant 6), signaled by passing enabled=false.
func (f *Finding) ComputeHash(enabled bool) uint64 {
	if !enabled {
		f.Hash = 0
		return 0
	}
	var sb strings.Builder
	sb.WriteString(f.ID)
	sb.WriteByte(0)
	if primary, ok := f.Primary(); ok {
		sb.WriteString(primary.FileName)
		sb.WriteByte(0)
		sb.WriteString(itoa32(primary.Line))
	}
	sb.WriteByte(0)
	sb.WriteString(f.SymbolNamesJoined())
	f.Hash = xxhash.Sum64String(sb.String())
	return f.Hash
}

func itoa32(v int32) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var buf [11]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
