// Package facts implements the borrow-count dataflow engine: for every
// reachable subject, compute the strictest constraint callers must satisfy
// (max outstanding mutable/immutable borrows per component) and the
// leak this subject itself contributes to its caller, memoizing facts
// per subject without a full fixpoint solve.
//
// Grounded directly on FactAnalyzer/analyze_single/analyze_multi in
// src/rustc/src/analyzer.rs (original_source), translated from MIR-local
// vocabulary (basic blocks, locals, terminators) to the IR-agnostic
// ir.Adapter contract, and on the teacher's Pending/Done-style state
// tracking idiom (internal/symbols.Symbol.IsPending).
package facts

import (
	"fmt"
	"math"

	"github.com/Radbuglet/autoken-go/internal/collector"
	"github.com/Radbuglet/autoken-go/internal/diagnostic"
	"github.com/Radbuglet/autoken-go/internal/ir"
	"github.com/Radbuglet/autoken-go/internal/primitives"
)

// Infinity is the saturating "no limit" sentinel for MaxInMut/MaxInRef.
const Infinity = math.MaxInt32

// Leak is the net number of borrows a subject's execution contributes to
// its caller for one component, relative to its entry state.
type Leak struct {
	Mut int
	Ref int
}

func (l Leak) Add(o Leak) Leak    { return Leak{Mut: l.Mut + o.Mut, Ref: l.Ref + o.Ref} }
func (l Leak) IsZero() bool       { return l.Mut == 0 && l.Ref == 0 }
func (l Leak) Equal(o Leak) bool  { return l.Mut == o.Mut && l.Ref == o.Ref }

// Facts is one component's row in a subject's fact summary.
type Facts struct {
	MaxInMut       int
	MaxInRef       int
	MutablyBorrows bool
	Leak           Leak
}

func defaultFacts() Facts {
	return Facts{MaxInMut: Infinity, MaxInRef: Infinity}
}

// Map is a subject's full fact summary, one row per component it touches.
// Components with no entry behave as defaultFacts(): unconstrained, never
// mutably borrowed, zero leak. Entries whose row equals the default are
// elided on write so the size of a Map reflects only components a subject
// actually constrains or leaks.
type Map map[ir.ComponentType]Facts

func (m Map) get(c ir.ComponentType) Facts {
	if f, ok := m[c]; ok {
		return f
	}
	return defaultFacts()
}

func (m Map) set(c ir.ComponentType, f Facts) {
	if f == defaultFacts() {
		delete(m, c)
		return
	}
	m[c] = f
}

// LeakMap is the leaked-borrow state flowing along one control-flow edge.
// A component absent from the map has leaked zero borrows.
type LeakMap map[ir.ComponentType]Leak

func (m LeakMap) clone() LeakMap {
	out := make(LeakMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m LeakMap) equal(o LeakMap) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		if ov, ok := o[k]; !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

type entryState struct {
	done  bool
	depth int // meaningful only while !done: the recursion depth this subject was first entered at
	facts Map
}

// Table memoizes per-subject fact summaries across one analysis run.
type Table struct {
	entries map[ir.Subject]*entryState
}

func NewTable() *Table {
	return &Table{entries: make(map[ir.Subject]*entryState)}
}

// Seed pre-populates subj as Done with facts, for callers (e.g. a SQLite
// fact cache) that already know a subject's summary without reanalysis.
func (t *Table) Seed(subj ir.Subject, facts Map) {
	t.entries[subj] = &entryState{done: true, facts: facts}
}

// Facts returns subj's committed facts, if analysis has completed for it.
func (t *Table) Facts(subj ir.Subject) (Map, bool) {
	e, ok := t.entries[subj]
	if !ok || !e.done {
		return nil, false
	}
	return e.facts, true
}

func (t *Table) doneOrEmpty(subj ir.Subject) Map {
	if f, ok := t.Facts(subj); ok {
		return f
	}
	return Map{}
}

// All calls fn for every subject this table has committed Done facts for,
// for a caller (e.g. a SQLite fact cache) that wants to persist a run's
// entire result rather than query subjects one at a time.
func (t *Table) All(fn func(ir.Subject, Map)) {
	for subj, e := range t.entries {
		if e.done {
			fn(subj, e.facts)
		}
	}
}

func saturatingSub(a, b int) int {
	if a >= Infinity {
		return Infinity
	}
	return a - b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Engine runs the fact algorithm over one Adapter/Result/Table/Emitter
// quadruple. It holds no state of its own beyond those references and the
// fatal error reported by Err, so a single Engine can analyze an entire
// program in one Analyze call.
type Engine struct {
	adapter  ir.Adapter
	graph    *collector.Result
	prims    *primitives.Table
	table    *Table
	emitter  *diagnostic.Emitter

	err error
}

func NewEngine(adapter ir.Adapter, graph *collector.Result, prims *primitives.Table, table *Table, emitter *diagnostic.Emitter) *Engine {
	return &Engine{adapter: adapter, graph: graph, prims: prims, table: table, emitter: emitter}
}

// Analyze computes facts for entry and everything reachable from it,
// emitting diagnostics into the engine's Emitter as it goes. A malformed
// adapter response (a terminator kind outside the fixed set ir.go defines)
// aborts the walk and is recorded rather than panicking; callers check Err
// afterwards to distinguish that from an ordinary clean or flagged run.
func (e *Engine) Analyze(entry ir.Instance) {
	e.analyzeSubject(0, ir.InstanceSubject(entry))
}

// Err returns the fatal error that stopped analysis early, if any.
func (e *Engine) Err() error { return e.err }

// analyzeSubject is FactAnalyzer::analyze in the original: it looks up or
// creates subj's table entry, dispatches to the right analysis strategy,
// and returns the minimum depth at which a cycle closed back through subj
// (Infinity if none did).
func (e *Engine) analyzeSubject(depth int, subj ir.Subject) int {
	if st, ok := e.table.entries[subj]; ok {
		if st.done {
			return Infinity
		}
		return st.depth
	}
	e.table.entries[subj] = &entryState{done: false, depth: depth}

	switch subj.Kind {
	case ir.SubjectFnPointer:
		targets := e.graph.FnPointerTargets(subj.FnPointerType)
		minDepth, fm := e.analyzeMulti(depth, targets, ir.Location{})
		e.table.entries[subj] = &entryState{done: true, facts: fm}
		return minDepth
	case ir.SubjectDynamic:
		targets := e.graph.DynamicTargets(subj.Dynamic)
		minDepth, fm := e.analyzeMulti(depth, targets, ir.Location{})
		e.table.entries[subj] = &entryState{done: true, facts: fm}
		return minDepth
	}

	return e.analyzeInstance(depth, subj)
}

// analyzeMulti computes the union of the facts of every instance in
// callees: the tightest (minimum) bound each enforces, the loosest (max)
// leak and mutably-borrows flag. When two callees disagree on the leak they
// contribute for the same component (possible only across dynamic-dispatch
// or function-pointer targets), a D3 is raised at loc and the larger leak
// is kept, matching the pessimistic combination used everywhere else in the
// engine.
func (e *Engine) analyzeMulti(depth int, callees []ir.Instance, loc ir.Location) (int, Map) {
	minRecurse := Infinity
	result := Map{}
	warned := map[ir.ComponentType]bool{}

	maps := make([]Map, len(callees))
	for i, callee := range callees {
		s := ir.InstanceSubject(callee)
		if d := e.analyzeSubject(depth, s); d < minRecurse {
			minRecurse = d
		}
		maps[i] = e.table.doneOrEmpty(s)
	}

	for _, cf := range maps {
		for ct, f := range cf {
			cur := result.get(ct)
			cur.MaxInMut = min(cur.MaxInMut, f.MaxInMut)
			cur.MaxInRef = min(cur.MaxInRef, f.MaxInRef)
			cur.MutablyBorrows = cur.MutablyBorrows || f.MutablyBorrows

			// A callee with no row for ct leaks nothing of it.
			cur.Leak = f.Leak
			for _, other := range maps {
				ol := other.get(ct).Leak
				cur.Leak.Mut = max(cur.Leak.Mut, ol.Mut)
				cur.Leak.Ref = max(cur.Leak.Ref, ol.Ref)
				if !ol.Equal(f.Leak) && !warned[ct] {
					warned[ct] = true
					e.emitter.Emit(diagnostic.D3LeakDisagreement, loc, ct,
						"dynamic dispatch targets disagree on leaked borrows of %s", ct)
				}
			}
			result.set(ct, cur)
		}
	}
	return minRecurse, result
}

// analyzeInstance is analyze_single in the original: the per-function
// intraprocedural walk that produces one Instance's fact summary.
func (e *Engine) analyzeInstance(depth int, subj ir.Subject) int {
	inst := subj.Instance
	name := e.adapter.InstanceName(inst)

	var transparent primitives.Kind = -1
	if kind, ok := e.prims.Recognize(name); ok {
		if primitives.IsHardcoded(kind) {
			e.table.entries[subj] = &entryState{done: true, facts: e.hardcodedFacts(inst, kind)}
			return Infinity
		}
		transparent = kind
	}

	body, res := e.adapter.Body(inst)
	switch res {
	case ir.BodyDynamic:
		dynKey, ok := e.adapter.DynKeyOf(inst)
		if !ok {
			e.table.entries[subj] = &entryState{done: true, facts: Map{}}
			return Infinity
		}
		dynSubj := ir.DynamicSubject(dynKey)
		minDepth := e.analyzeSubject(depth, dynSubj)
		fm := e.table.doneOrEmpty(dynSubj)
		e.table.entries[subj] = &entryState{done: true, facts: fm}
		return minDepth
	case ir.BodyUnavailable:
		e.table.entries[subj] = &entryState{done: true, facts: Map{}}
		return Infinity
	}

	return e.walkBody(depth, subj, inst, body, transparent)
}

func (e *Engine) hardcodedFacts(inst ir.Instance, kind primitives.Kind) Map {
	ct, ok := e.adapter.TypeArgComponent(inst, 0)
	if !ok || e.adapter.IsNothingType(ct) {
		return Map{}
	}
	var f Facts
	switch kind {
	case primitives.KindBorrowMutably:
		f = Facts{MaxInMut: 0, MaxInRef: 0, MutablyBorrows: true, Leak: Leak{Mut: 1}}
	case primitives.KindUnborrowMutably:
		f = Facts{MaxInMut: Infinity, MaxInRef: Infinity, Leak: Leak{Mut: -1}}
	case primitives.KindBorrowImmutably:
		f = Facts{MaxInMut: 0, MaxInRef: Infinity, Leak: Leak{Ref: 1}}
	case primitives.KindUnborrowImmutably:
		f = Facts{MaxInMut: Infinity, MaxInRef: Infinity, Leak: Leak{Ref: -1}}
	case primitives.KindBlackBox:
		return Map{}
	}
	m := Map{}
	m.set(ct, f)
	return m
}

// walkBody performs the intraprocedural worklist walk: steps 5-9 of the
// fact algorithm (per-block leak propagation, per-call validation,
// recursion guard, return-point synthesis, recursion-mutation check, and
// escape-hatch post-processing).
func (e *Engine) walkBody(depth int, subj ir.Subject, inst ir.Instance, body *ir.Body, transparent primitives.Kind) int {
	n := len(body.Blocks)
	exit := ir.BlockID(n)

	inLeak := make([]LeakMap, n+1)
	visited := make([]bool, n+1)
	inLeak[0] = LeakMap{}
	visited[0] = true
	stack := []ir.BlockID{0}

	minRecurseInto := Infinity
	myFacts := Map{}
	cannotHaveMutablesOf := map[ir.ComponentType]bool{}

	for len(stack) > 0 {
		curID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		block := body.Blocks[curID]
		cur := inLeak[curID]
		term := block.Terminator
		span := term.Span
		if span.File == "" {
			span = body.Span
		}

		switch term.Kind {
		case ir.TermGoto, ir.TermBranchMulti, ir.TermCall, ir.TermDrop, ir.TermReturn, ir.TermUnwind:
		default:
			e.err = &ir.FatalError{Reason: fmt.Sprintf(
				"unexpected terminator kind %d in %s", term.Kind, e.adapter.InstanceName(inst))}
			return depth
		}

		var calleeSubj *ir.Subject
		switch term.Kind {
		case ir.TermCall:
			res := e.adapter.ResolveCallee(inst, term.Call)
			var s ir.Subject
			switch res.Kind {
			case ir.CalleeStatic:
				s = ir.InstanceSubject(res.Static)
			case ir.CalleeFnPointer:
				s = ir.FnPointerSubject(res.FnPointerType)
			case ir.CalleeDynamic:
				s = ir.DynamicSubject(res.Dynamic)
			}
			calleeSubj = &s
		case ir.TermDrop:
			if dropInst, ok := e.adapter.ResolveDrop(inst, term.DropPlace); ok {
				s := ir.InstanceSubject(dropInst)
				calleeSubj = &s
			}
		}

		var cf Map
		if calleeSubj != nil {
			thisMin := e.analyzeSubject(depth+1, *calleeSubj)
			if thisMin < minRecurseInto {
				minRecurseInto = thisMin
			}
			if thisMin <= depth {
				for ct, lf := range cur {
					if lf.Mut != 0 || lf.Ref > 0 {
						cannotHaveMutablesOf[ct] = true
					}
				}
			}
			cf = e.table.doneOrEmpty(*calleeSubj)
		} else {
			cf = Map{}
		}

		for ct, cfFacts := range cf {
			mf := myFacts.get(ct)
			curLeak := cur[ct]

			constrictMut := saturatingSub(cfFacts.MaxInMut, curLeak.Mut)
			if constrictMut < 0 {
				e.emitter.Emit(diagnostic.D1TooManyMutableBorrows, span, ct,
					"call requires at most %d outstanding mutable borrows of %s, but %d are held",
					cfFacts.MaxInMut, ct, curLeak.Mut)
			} else {
				mf.MaxInMut = min(mf.MaxInMut, constrictMut)
			}

			constrictRef := saturatingSub(cfFacts.MaxInRef, curLeak.Ref)
			if constrictRef < 0 {
				e.emitter.Emit(diagnostic.D2TooManyImmutableBorrows, span, ct,
					"call requires at most %d outstanding immutable borrows of %s, but %d are held",
					cfFacts.MaxInRef, ct, curLeak.Ref)
			} else {
				mf.MaxInRef = min(mf.MaxInRef, constrictRef)
			}

			mf.MutablyBorrows = mf.MutablyBorrows || cfFacts.MutablyBorrows
			myFacts.set(ct, mf)
		}

		outLeak := LeakMap{}
		for ct, cfFacts := range cf {
			if !cfFacts.Leak.IsZero() {
				outLeak[ct] = cfFacts.Leak
			}
		}
		for ct, lf := range cur {
			combined := outLeak[ct].Add(lf)
			if combined.IsZero() {
				delete(outLeak, ct)
			} else {
				outLeak[ct] = combined
			}
		}

		successors := term.Successors
		switch term.Kind {
		case ir.TermReturn:
			successors = []ir.BlockID{exit}
		case ir.TermUnwind:
			successors = nil
		}

		for _, succ := range successors {
			if !visited[succ] {
				visited[succ] = true
				inLeak[succ] = outLeak.clone()
				if succ != exit {
					stack = append(stack, succ)
				}
				continue
			}
			if !inLeak[succ].equal(outLeak) {
				e.emitter.Emit(diagnostic.D3LeakDisagreement, span, ir.ComponentType{},
					"not every control-flow path reaching this point leaks the same borrows")
			}
		}
	}

	exitLeak := LeakMap{}
	if visited[exit] {
		exitLeak = inLeak[exit]
	}
	for ct, lf := range exitLeak {
		mf := myFacts.get(ct)
		mf.Leak = lf
		myFacts.set(ct, mf)
		if minRecurseInto <= depth && !lf.IsZero() {
			e.emitter.Emit(diagnostic.D4RecursiveLeak, body.Span, ct,
				"function self-recurses yet leaks borrows of %s", ct)
		}
	}

	for ct := range cannotHaveMutablesOf {
		if f, ok := myFacts[ct]; ok && f.MutablyBorrows {
			e.emitter.Emit(diagnostic.D5RecursiveMutateWhileBorrowed, body.Span, ct,
				"function self-recurses while holding a borrow of %s, yet also mutably borrows it", ct)
		}
	}

	e.applyEscapeHatch(inst, transparent, myFacts)

	e.table.entries[subj] = &entryState{done: true, facts: myFacts}
	return minRecurseInto
}

func (e *Engine) applyEscapeHatch(inst ir.Instance, kind primitives.Kind, facts Map) {
	switch kind {
	case primitives.KindAssumeNoAliasIn:
		ct0, ok := e.adapter.TypeArgComponent(inst, 0)
		if !ok {
			return
		}
		targets := []ir.ComponentType{ct0}
		if tup, isTuple := e.adapter.TupleComponents(ct0); isTuple {
			targets = tup
		}
		for _, ct := range targets {
			relaxFacts(facts, ct)
		}
	case primitives.KindAssumeNoAlias:
		for ct := range facts {
			relaxFacts(facts, ct)
		}
	}
}

func relaxFacts(facts Map, ct ir.ComponentType) {
	f, ok := facts[ct]
	if !ok {
		return
	}
	f.MaxInMut = Infinity
	f.MaxInRef = Infinity
	f.MutablyBorrows = false
	facts.set(ct, f)
}
