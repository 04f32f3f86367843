// Package checker implements the Checker Registry (spec component E):
// the Checker contract, an explicit registration-ordered dispatch, and
// the checks_max_time budget.
package checker

import (
	"time"

	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/tokenview"
)

// Sink is the subset of the Finding Sink a checker is allowed to see
// (spec §4.3: "run_checks(tokens, sink)"). Checkers never see suppression
// state, dedup, or the render pipeline — those belong to the sink itself.
type Sink interface {
	Report(f finding.Finding)
}

// Settings is the subset of global configuration checkers may consult.
// Defined here (rather than imported from internal/config) to keep the
// checker contract free of a dependency on the config file format.
type Settings struct {
	EnabledSeverities  map[finding.Severity]bool
	Inconclusive       bool
	LibraryEntryPoints map[string]bool // exported/reflection/DLL-export hooks (spec §4.3)
}

// Enabled reports whether sev is active under these settings.
func (s Settings) Enabled(sev finding.Severity) bool {
	if s.EnabledSeverities == nil {
		return true
	}
	return s.EnabledSeverities[sev]
}

// FileInfo is a checker-specific, checker-owned summary of one
// (file,config) pass, serialized into the sidecar for cross-TU joining
// (spec §4.3 "file_info"/"parse_file_info").
type FileInfo interface {
	// CheckerName identifies which checker produced this FileInfo, so the
	// joiner (component I) can route it back to WholeProgram.
	CheckerName() string
}

// CTUInfo is the whole-program info the File Analyzer/Joiner accumulates
// across every file's sidecar (function-call graph fragments, etc.).
type CTUInfo struct {
	// Raw holds the raw XML-sourced fragments keyed
	// by checker name, letting each checker's WholeProgram interpret only
	// its own slice without knowing about the others.
	Raw map[string][]byte
}

// Checker is the spec §4.3 contract every analysis pass implements.
type Checker interface {
	// Name is the opaque checker identifier used for registration order,
	// sidecar routing, and the checks_max_time debug finding.
	Name() string

	// Run executes pure pattern/dataflow analysis over one Token/Symbol
	// View, reporting through sink. Must be safe to call concurrently
	// across distinct views (spec §4.3: "re-entrant across threads
	// operating on different token views").
	Run(view *tokenview.View, settings Settings, sink Sink) error

	// FileInfo returns this checker's cross-TU summary for (view,cfg), or
	// nil if it has nothing to contribute. Must be deterministic.
	FileInfo(view *tokenview.View, settings Settings, cfg string) (FileInfo, error)

	// ParseFileInfo reconstructs a FileInfo from its sidecar XML fragment.
	ParseFileInfo(xmlFragment []byte) (FileInfo, error)

	// WholeProgram is invoked exactly once after every file has been
	// analyzed, given the union of every FileInfo this checker produced
	// plus the reconstructed CTU graph.
	WholeProgram(ctu CTUInfo, infos []FileInfo, settings Settings, sink Sink) error
}

// Registry holds checkers in a stable, registration-order dispatch list
// (spec §4.3: "a registration order that is stable across runs").
type Registry struct {
	checkers []Checker
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends c to the dispatch order. Registering the same Name
// twice is a programmer error and panics immediately rather than
// silently shadowing a checker.
func (r *Registry) Register(c Checker) {
	for _, existing := range r.checkers {
		if existing.Name() == c.Name() {
			panic("checker: duplicate registration for " + c.Name())
		}
	}
	r.checkers = append(r.checkers, c)
}

// All returns the checkers in registration order.
func (r *Registry) All() []Checker {
	out := make([]Checker, len(r.checkers))
	copy(out, r.checkers)
	return out
}

// RunAll dispatches every registered checker against view in registration
// order, honoring the checksMaxTime wall-clock budget (spec §4.3: "An
// optional per-pass wall-clock budget short-circuits remaining checkers
// with a Debug finding"). A budget of 0 means unlimited; a negative
// budget counts as already spent.
func (r *Registry) RunAll(view *tokenview.View, settings Settings, sink Sink, checksMaxTime time.Duration) error {
	deadline := time.Time{}
	if checksMaxTime != 0 {
		deadline = time.Now().Add(checksMaxTime)
	}
	for i, c := range r.checkers {
		if !deadline.IsZero() && time.Now().After(deadline) {
			sink.Report(finding.Finding{
				ID:           "checksMaxTime",
				Severity:     finding.SeverityDebug,
				Certainty:    finding.CertaintyNormal,
				ShortMessage: "checks_max_time exceeded, remaining checkers skipped",
				File0:        view.FilePath,
				SymbolNames:  remainingNames(r.checkers[i:]),
			})
			return nil
		}
		if err := c.Run(view, settings, sink); err != nil {
			return err
		}
	}
	return nil
}

func remainingNames(checkers []Checker) []string {
	names := make([]string, len(checkers))
	for i, c := range checkers {
		names[i] = c.Name()
	}
	return names
}
