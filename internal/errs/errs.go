// Package errs implements the analyzer's internal error taxonomy (spec §7).
// Checkers and the preprocessor adapter never panic or call os.Exit; they
// either emit a Finding directly or return one of these typed errors, which
// the File Analyzer converts into a Finding at its boundary.
package errs

import (
	"fmt"
	"time"
)

// Kind classifies an internal analyzer error.
type Kind string

const (
	KindInput         Kind = "input"
	KindSyntax        Kind = "syntax"
	KindPreprocessor  Kind = "preprocessor"
	KindInternal      Kind = "internal"
	KindAddon         Kind = "addon"
	KindTerminate     Kind = "terminate"
)

// AnalysisError is the common shape for every taxonomy member in §7.
type AnalysisError struct {
	Kind        Kind
	Operation   string
	FilePath    string
	Config      string
	Underlying  error
	Recoverable bool
	Timestamp   time.Time
}

func newError(kind Kind, op string, err error) *AnalysisError {
	return &AnalysisError{
		Kind:       kind,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewInputError wraps a missing/unreadable input file.
func NewInputError(op, path string, err error) *AnalysisError {
	e := newError(KindInput, op, err)
	e.FilePath = path
	return e
}

// NewSyntaxError wraps an unrecoverable lexical error; the file's analysis
// stops but other files continue.
func NewSyntaxError(path string, err error) *AnalysisError {
	e := newError(KindSyntax, "tokenize", err)
	e.FilePath = path
	return e
}

// NewPreprocessorError wraps a failing #error/bad-directive for one
// configuration; if any configuration succeeds the error is subsumed.
func NewPreprocessorError(path, cfg string, err error) *AnalysisError {
	e := newError(KindPreprocessor, "preprocess", err)
	e.FilePath = path
	e.Config = cfg
	return e
}

// NewInternalError wraps an invariant violation inside a checker; analysis
// continues with the next file.
func NewInternalError(op string, err error) *AnalysisError {
	e := newError(KindInternal, op, err)
	e.Recoverable = true
	return e
}

// NewAddonError wraps a non-zero addon exit or unparsable addon output.
func NewAddonError(addonName string, err error) *AnalysisError {
	e := newError(KindAddon, "addon:"+addonName, err)
	return e
}

// NewTerminateError signals cooperative cancellation; no Finding is emitted
// from the raise site itself.
func NewTerminateError() *AnalysisError {
	return &AnalysisError{Kind: KindTerminate, Operation: "terminate", Timestamp: time.Now()}
}

func (e *AnalysisError) Error() string {
	if e.FilePath != "" && e.Config != "" {
		return fmt.Sprintf("%s %s failed for %s [%s]: %v", e.Kind, e.Operation, e.FilePath, e.Config, e.Underlying)
	}
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Kind, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *AnalysisError) Unwrap() error {
	return e.Underlying
}

func (e *AnalysisError) IsRecoverable() bool {
	return e.Recoverable
}

// MultiError accumulates per-configuration preprocessor diagnostics so the
// File Analyzer can report one noValidConfiguration finding listing every
// failing config (spec §4.4 step 5).
type MultiError struct {
	Errors []error
}

func NewMultiError(errors []error) *MultiError {
	filtered := make([]error, 0, len(errors))
	for _, err := range errors {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d configurations failed: %v", len(m.Errors), m.Errors)
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// RuleID maps an error's Kind to the stable rule id it surfaces as a
// Finding (spec §7 taxonomy table).
func (e *AnalysisError) RuleID() string {
	switch e.Kind {
	case KindSyntax:
		return "syntaxError"
	case KindPreprocessor:
		return "preprocessorErrorDirective"
	case KindAddon:
		return "internalError"
	case KindInput, KindInternal:
		return "internalError"
	default:
		return "internalError"
	}
}
