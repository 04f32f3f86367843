// Package sink implements the Finding Sink (spec component J): the
// 10-step report() pipeline that turns a raw Finding into either a
// dropped, suppressed, or user-visible diagnostic.
package sink

import (
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/render"
	"github.com/standardbeagle/cppcore/internal/sidecar"
	"github.com/standardbeagle/cppcore/internal/suppress"
)

// Logger receives the rendered text of every finding that survives the
// pipeline (spec §4.7 step 10, "forward to the user-supplied logger").
type Logger func(rendered string, f finding.Finding)

// PlistWriter appends one finding to an open plist output (spec §4.7
// step 10). Nil when no plist output was requested.
type PlistWriter func(f finding.Finding)

// LibraryFilter answers spec §4.7 step 2: "reject if the target library
// says the file should not be reported on". Nil means never reject.
type LibraryFilter func(f finding.Finding) (reportable bool)

// Options configures one Sink instance (spec §4.4/§4.7).
type Options struct {
	Template       string
	SafetyMode     bool
	EmitDuplicates bool
	Logger         Logger
	Plist          PlistWriter
	LibraryFilter  LibraryFilter
	Sidecar        *sidecar.Document // nil if no sidecar is open for this pass
	NofailSuppress *suppress.Store   // auxiliary "nofail" list, spec §4.7 step 8
	Remarks        map[RemarkKey]string
}

// RemarkKey identifies the (file,line) a `cppcheck-remark` comment
// attaches to, used by step 9 of report() to find a matching remark.
type RemarkKey struct {
	File string
	Line int32
}

// Sink is one worker's Finding Sink: it owns a local dedup set (spec §5:
// "each worker owns its local dedup set") and talks to a shared
// Suppression Store.
type Sink struct {
	opts     Options
	supp     *suppress.Store
	mu       sync.Mutex
	seen     map[string]bool // rendered-text dedup set
	exitCode int32           // accessed via atomic, spec §5 "atomic max across workers"
}

// New creates a Sink bound to a shared Suppression Store.
func New(supp *suppress.Store, opts Options) *Sink {
	if opts.Template == "" {
		opts.Template = render.DefaultTemplate
	}
	return &Sink{opts: opts, supp: supp, seen: make(map[string]bool)}
}

// SetSidecar rebinds the sidecar a subsequent Report's step 7 writes
// into. Safe to call between configurations of the same file: per spec
// §5 "within a file the analysis is single-threaded and sequential
// across configurations", so no additional locking is required here.
func (s *Sink) SetSidecar(doc *sidecar.Document) {
	s.opts.Sidecar = doc
}

// ExitCode returns the exit code this sink has accumulated so far.
func (s *Sink) ExitCode() int {
	return int(atomic.LoadInt32(&s.exitCode))
}

func (s *Sink) setExit1() {
	atomic.StoreInt32(&s.exitCode, 1)
}

// MergeExitCode folds another sink's exit code into this one via atomic
// max, the join-time aggregation spec §5 describes.
func (s *Sink) MergeExitCode(other *Sink) {
	if other.ExitCode() == 1 {
		s.setExit1()
	}
}

// Report executes the spec §4.7 report() algorithm.
func (s *Sink) Report(f finding.Finding) {
	// Step 1: Internal severity bypasses suppression entirely.
	if f.Severity == finding.SeverityInternal {
		s.deliver(f, render.Render(s.opts.Template, f))
		return
	}

	// Step 2: library filter.
	if s.opts.LibraryFilter != nil && !s.opts.LibraryFilter(f) {
		return
	}

	// Steps 3-4: suppression lookup.
	lookup := toLookupForm(f)
	suppressed := s.supp.IsSuppressed(lookup)
	if suppressed {
		if s.opts.SafetyMode && suppress.IsCritical(f.ID) {
			s.setExit1()
			f.Severity = finding.SeverityInternal
			s.deliver(f, render.Render(s.opts.Template, f))
			return
		}
		return
	}

	// Step 5: render; empty render drops the finding.
	rendered := render.Render(s.opts.Template, f)
	if rendered == "" {
		return
	}

	// Step 6: dedup on rendered text.
	if !s.opts.EmitDuplicates {
		s.mu.Lock()
		if s.seen[rendered] {
			s.mu.Unlock()
			return
		}
		s.seen[rendered] = true
		s.mu.Unlock()
	}

	s.deliver(f, rendered)
}

// deliver executes steps 7-10 once a finding has survived suppression,
// rendering, and dedup.
func (s *Sink) deliver(f finding.Finding, rendered string) {
	// Step 7: sidecar write-through.
	if s.opts.Sidecar != nil {
		s.opts.Sidecar.AddFinding(f)
	}

	// Step 8: nofail list — any finding reaching this point is a
	// non-suppressed forward and sets exit code 1 unless the nofail list
	// says otherwise (spec §4.7 "Exit codes").
	if s.opts.NofailSuppress == nil || !s.opts.NofailSuppress.IsSuppressed(toLookupForm(f)) {
		s.setExit1()
	}

	// Step 9: remark attachment.
	if s.opts.Remarks != nil {
		if primary, ok := f.Primary(); ok {
			if text, found := s.opts.Remarks[RemarkKey{File: primary.FileName, Line: primary.Line}]; found {
				f.Remark = text
			}
		}
	}

	// Step 10: logger + plist.
	if s.opts.Logger != nil {
		s.opts.Logger(rendered, f)
	}
	if s.opts.Plist != nil {
		s.opts.Plist(f)
	}
}

func toLookupForm(f finding.Finding) suppress.LookupForm {
	lf := suppress.LookupForm{ErrorID: f.ID, Hash: f.Hash, Symbols: f.SymbolNames, Certainty: f.Certainty}
	if primary, ok := f.Primary(); ok {
		lf.File = primary.FileName
		lf.Line = primary.Line
	} else {
		lf.File = f.File0
	}
	return lf
}
