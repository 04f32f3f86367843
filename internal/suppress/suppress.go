// Package suppress implements the Suppression Store (spec component B):
// parsing, indexing, and matching suppression records, and tracking
// "checked"/"matched" observation state (spec §4.2).
package suppress

import (
	"sync"

	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/location"
)

// Type distinguishes the suppression selector shape (spec §3.1).
type Type string

const (
	TypeUnique     Type = "unique"
	TypeBlock      Type = "block"
	TypeBlockBegin Type = "block_begin"
	TypeBlockEnd   Type = "block_end"
	TypeFile       Type = "file"
	TypeMacro      Type = "macro"
)

// Suppression mirrors spec §3.1 entity "Suppression".
type Suppression struct {
	ErrorIDGlob     string
	FileNameGlob    string
	Line            int32 // -1 when unset
	LineBegin       int32
	LineEnd         int32
	SymbolGlob      string
	Hash            uint64
	Type            Type
	MacroName       string
	ThisAndNextLine bool
	IsInline        bool
	ExtraComment    string

	mu      sync.Mutex
	checked bool
	matched bool
}

// Checked reports whether this suppression's selector was ever reached.
func (s *Suppression) Checked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked
}

// Matched reports whether this suppression ever fully matched a Finding.
func (s *Suppression) Matched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matched
}

func (s *Suppression) markChecked() {
	s.mu.Lock()
	s.checked = true
	s.mu.Unlock()
}

func (s *Suppression) markMatched() {
	s.mu.Lock()
	s.checked = true
	s.matched = true
	s.mu.Unlock()
}

// critical ids (spec §4.7 step 4).
var criticalIDs = map[string]bool{
	"cppcheckError":              true,
	"cppcheckLimit":              true,
	"internalAstError":           true,
	"instantiationError":         true,
	"internalError":              true,
	"premium-internalError":      true,
	"preprocessorErrorDirective": true,
	"syntaxError":                true,
	"unknownMacro":               true,
}

// IsCritical reports whether id is in the critical set consulted by the
// Finding Sink's safety-mode handling.
func IsCritical(id string) bool { return criticalIDs[id] }

// outcome is the tri-state result of matching one suppression against one
// finding (spec §4.2 step 5).
type outcome int

const (
	outcomeNone outcome = iota
	outcomeChecked
	outcomeMatched
)

// lineReached holds per-file line visitation, used to resolve the spec §9
// open question: a suppression only becomes eligible for "unmatched"
// reporting once its target line was actually reached during the pass.
type lineReached struct {
	mu    sync.Mutex
	files map[string]map[int32]bool
}

func newLineReached() *lineReached {
	return &lineReached{files: make(map[string]map[int32]bool)}
}

func (l *lineReached) mark(file string, line int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.files[file]
	if !ok {
		m = make(map[int32]bool)
		l.files[file] = m
	}
	m[line] = true
}

func (l *lineReached) wasReached(file string, line int32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.files[file]
	if !ok {
		return false
	}
	return m[line]
}

// Store owns the process-wide suppression set with interior mutability for
// the checked/matched flags (spec §3.2, §5: mutated concurrently, updates
// serialized per-suppression rather than behind one global lock so
// independent files don't contend).
type Store struct {
	mu            sync.RWMutex
	suppressions  []*Suppression
	unmatchedSupp []*Suppression // suppressions whose error_id_glob == "unmatchedSuppression"
	lines         *lineReached
}

// NewStore creates an empty Suppression Store.
func NewStore() *Store {
	return &Store{lines: newLineReached()}
}

// Add validates and indexes one suppression.
func (s *Store) Add(supp *Suppression) error {
	if err := validateRuleID(supp.ErrorIDGlob); err != nil {
		return err
	}
	if supp.FileNameGlob != "" {
		if err := validateGlob(supp.FileNameGlob); err != nil {
			return err
		}
	}
	if supp.SymbolGlob != "" {
		if err := validateGlob(supp.SymbolGlob); err != nil {
			return err
		}
	}
	if supp.Line == 0 {
		supp.Line = location.NoLine
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressions = append(s.suppressions, supp)
	if supp.ErrorIDGlob == "unmatchedSuppression" {
		s.unmatchedSupp = append(s.unmatchedSupp, supp)
	}
	return nil
}

// All returns a snapshot of every indexed suppression.
func (s *Store) All() []*Suppression {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Suppression, len(s.suppressions))
	copy(out, s.suppressions)
	return out
}

// MarkLineReached records that tokens at (file,line) were actually
// observed during this pass, making any suppression targeting that line
// eligible for "unmatched" reporting.
func (s *Store) MarkLineReached(file string, line int32) {
	s.lines.mark(file, line)
}

// matchOne implements the 5-step algorithm of spec §4.2 for a single
// suppression against a single Finding's lookup form.
func matchOne(supp *Suppression, f LookupForm) outcome {
	// Step 1: selector.
	if supp.Type == TypeMacro {
		if !f.HasMacro(supp.MacroName) {
			return outcomeNone
		}
	} else {
		if supp.Line != location.NoLine && supp.Type == TypeUnique {
			want := supp.Line
			if supp.ThisAndNextLine && f.Line == supp.Line+1 {
				// matches via this-and-next-line extension
			} else if f.Line != want {
				return outcomeNone
			}
		}
		if supp.FileNameGlob != "" {
			if !globMatch(supp.FileNameGlob, f.File) {
				return outcomeNone
			}
		}
		if supp.Type == TypeBlock {
			if !(supp.LineBegin <= f.Line && f.Line <= supp.LineEnd) {
				return outcomeNone
			}
		}
	}

	// Step 2: hash filter.
	if supp.Hash != 0 && supp.Hash != f.Hash {
		return outcomeChecked
	}

	// Step 3: error id filter.
	if supp.ErrorIDGlob != "" && !globMatch(supp.ErrorIDGlob, f.ErrorID) {
		return outcomeChecked
	}

	// Step 4: symbol filter.
	if supp.SymbolGlob != "" {
		matched := false
		for _, sym := range f.Symbols {
			if globMatch(supp.SymbolGlob, sym) {
				matched = true
				break
			}
		}
		if !matched {
			return outcomeChecked
		}
	}

	return outcomeMatched
}

// LookupForm is the suppression-lookup projection of a Finding carried by
// the Finding Sink into IsSuppressed (spec §4.7 step 3).
type LookupForm struct {
	File      string
	Line      int32
	ErrorID   string
	Hash      uint64
	Symbols   []string
	Macros    map[string]bool
	Certainty finding.Certainty
}

// HasMacro reports whether name is in the finding's macro-name set.
func (f LookupForm) HasMacro(name string) bool {
	return f.Macros != nil && f.Macros[name]
}

// IsSuppressed answers the Suppression Store's core question: does any
// suppression silence this finding? unmatchedSuppression findings are
// matched only against suppressions whose error_id_glob ==
// "unmatchedSuppression" (spec §4.2 final paragraph).
func (s *Store) IsSuppressed(f LookupForm) bool {
	s.mu.RLock()
	candidates := s.suppressions
	if f.ErrorID == "unmatchedSuppression" {
		candidates = s.unmatchedSupp
	}
	snapshot := make([]*Suppression, len(candidates))
	copy(snapshot, candidates)
	s.mu.RUnlock()

	suppressed := false
	for _, supp := range snapshot {
		switch matchOne(supp, f) {
		case outcomeMatched:
			supp.markMatched()
			suppressed = true
		case outcomeChecked:
			supp.markChecked()
		}
	}
	return suppressed
}

// GetUnmatchedLocal returns suppressions that were checked-but-never-
// matched, whose target line was reached, and that are file-local (inline
// or file-scoped) for the given file.
func (s *Store) GetUnmatchedLocal(file string) []*Suppression {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Suppression
	for _, supp := range s.suppressions {
		if !(supp.IsInline || supp.Type == TypeFile) {
			continue
		}
		if supp.FileNameGlob != file {
			continue
		}
		if !s.eligible(supp, file) {
			continue
		}
		out = append(out, supp)
	}
	return out
}

// GetUnmatchedGlobal returns checked-but-never-matched suppressions that
// are not file-local.
func (s *Store) GetUnmatchedGlobal() []*Suppression {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Suppression
	for _, supp := range s.suppressions {
		if supp.IsInline || supp.Type == TypeFile {
			continue
		}
		if !s.eligible(supp, supp.FileNameGlob) {
			continue
		}
		out = append(out, supp)
	}
	return out
}

func (s *Store) eligible(supp *Suppression, file string) bool {
	if !supp.Checked() || supp.Matched() {
		return false
	}
	// Open Question resolution (DESIGN.md #1): only report a suppression
	// as unmatched if its target line was actually reached this pass.
	switch {
	case supp.Line != location.NoLine:
		return s.lines.wasReached(file, supp.Line)
	case supp.Type == TypeBlock:
		for l := supp.LineBegin; l <= supp.LineEnd; l++ {
			if s.lines.wasReached(file, l) {
				return true
			}
		}
		return false
	default:
		// File-scoped/macro suppressions with no specific line: no line
		// check is made; having been checked is enough.
		return true
	}
}
