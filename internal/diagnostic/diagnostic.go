// Package diagnostic defines the analyzer's closed taxonomy of findings
// (D1-D5) and a position-deduplicating collector, grounded on the walker's
// errorSet pattern in the teacher's analyzer.
package diagnostic

import (
	"fmt"

	"github.com/Radbuglet/autoken-go/internal/ir"
)

// Kind is one of the five diagnostic shapes the fact engine can produce.
type Kind string

const (
	// D1: a call site has more outstanding mutable borrows of a component
	// than the callee allows.
	D1TooManyMutableBorrows Kind = "D1"
	// D2: a call site has more outstanding immutable borrows of a
	// component than the callee allows.
	D2TooManyImmutableBorrows Kind = "D2"
	// D3: two control-flow paths reaching the same block disagree on the
	// leaked borrow counts they carry.
	D3LeakDisagreement Kind = "D3"
	// D4: a function that self-recurses (directly or through a cycle)
	// still has a nonzero net leak at one of its returns.
	D4RecursiveLeak Kind = "D4"
	// D5: a function that self-recurses while holding a borrow of a
	// component also mutably borrows that same component somewhere in its
	// body.
	D5RecursiveMutateWhileBorrowed Kind = "D5"
)

// Severity controls whether a diagnostic affects the process exit code.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is one finding. Component is the zero ComponentType when the
// finding isn't about one specific component (D3 in the general case).
type Diagnostic struct {
	Kind      Kind
	Severity  Severity
	Component ir.ComponentType
	Location  ir.Location
	Message   string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Kind, d.Message)
}

// Emitter accumulates diagnostics during one analysis run, deduplicating by
// (kind, location, component) so that revisiting a Done fact table entry
// from multiple call sites never reports the same finding twice. This
// mirrors the teacher's walker.errorSet pattern, keyed analogously by
// "line:col:code" instead of a map[string]*DiagnosticError.
type Emitter struct {
	seen  map[string]bool
	diags []*Diagnostic

	// warnOnly downgrades the listed kinds to SeverityWarning.
	warnOnly map[Kind]bool
}

func NewEmitter(warnOnly []string) *Emitter {
	wo := make(map[Kind]bool, len(warnOnly))
	for _, k := range warnOnly {
		wo[Kind(k)] = true
	}
	return &Emitter{seen: make(map[string]bool), warnOnly: wo}
}

// Emit records a diagnostic unless an identical (kind, location, component)
// finding was already emitted this run.
func (e *Emitter) Emit(kind Kind, loc ir.Location, component ir.ComponentType, format string, args ...any) {
	key := fmt.Sprintf("%s|%d|%d|%s|%s", loc.File, loc.Line, loc.Col, kind, component)
	if e.seen[key] {
		return
	}
	e.seen[key] = true

	sev := SeverityError
	if e.warnOnly[kind] {
		sev = SeverityWarning
	}
	e.diags = append(e.diags, &Diagnostic{
		Kind:      kind,
		Severity:  sev,
		Component: component,
		Location:  loc,
		Message:   fmt.Sprintf(format, args...),
	})
}

// Report finalizes the emitter into an immutable result.
func (e *Emitter) Report() *Report {
	return &Report{Diagnostics: e.diags}
}

// Report is the result of one analysis run.
type Report struct {
	Diagnostics []*Diagnostic
}

// HasErrors reports whether any diagnostic in the report is error severity,
// the condition that drives cmd/autoken's non-zero exit code.
func (r *Report) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
