// Package irtest is a synthetic ir.Adapter: an in-memory program built
// incrementally by tests that need exact control over blocks, casts, and
// terminators without going through a real Go front end. Grounded on the
// teacher's vm.Chunk, which builds a unit of executable code incrementally
// while tracking a source line/column alongside every byte written; here
// every terminator carries its own ir.Location the same way.
package irtest

import "github.com/Radbuglet/autoken-go/internal/ir"

// Program is a hand-assembled whole program: every function body, its
// call/drop resolutions, and its monomorphization metadata, held directly
// in memory and served through the ir.Adapter interface.
type Program struct {
	entry    ir.Instance
	hasEntry bool

	bodies      map[ir.Instance]*ir.Body
	dynamicShim map[ir.Instance]ir.DynKey
	unavailable map[ir.Instance]bool

	calleeRes map[ir.Instance]map[ir.CallOperand]ir.CalleeResolution
	dropRes   map[ir.Instance]map[ir.Place]ir.Instance

	names    map[ir.Instance]string
	typeArgs map[ir.Instance][]ir.ComponentType
	tuples   map[ir.ComponentType][]ir.ComponentType
	nothing  map[ir.ComponentType]bool
}

func NewProgram() *Program {
	return &Program{
		bodies:      make(map[ir.Instance]*ir.Body),
		dynamicShim: make(map[ir.Instance]ir.DynKey),
		unavailable: make(map[ir.Instance]bool),
		calleeRes:   make(map[ir.Instance]map[ir.CallOperand]ir.CalleeResolution),
		dropRes:     make(map[ir.Instance]map[ir.Place]ir.Instance),
		names:       make(map[ir.Instance]string),
		typeArgs:    make(map[ir.Instance][]ir.ComponentType),
		tuples:      make(map[ir.ComponentType][]ir.ComponentType),
		nothing:     make(map[ir.ComponentType]bool),
	}
}

// Inst is shorthand for building an ir.Instance from a bare definition
// name, which is all these tests ever need to distinguish functions.
func Inst(def string) ir.Instance { return ir.Instance{Def: def} }

// InstArgs builds a monomorphized ir.Instance with an explicit args key,
// for tests exercising generic instantiation directly.
func InstArgs(def, args string) ir.Instance { return ir.Instance{Def: def, Args: args} }

func (p *Program) SetEntry(i ir.Instance) { p.entry, p.hasEntry = i, true }

// AddFunc registers i's body. Its name defaults to i.Def unless overridden
// with Name; blocks must be in ID order starting at 0.
func (p *Program) AddFunc(i ir.Instance, span ir.Location, blocks ...ir.Block) {
	p.bodies[i] = &ir.Body{Blocks: blocks, Span: span}
}

// Name overrides i's InstanceName, for recognizing primitive calls whose
// definition identity isn't literally the `__autoken_*` leaf name.
func (p *Program) Name(i ir.Instance, name string) { p.names[i] = name }

// TypeArgs records i's monomorphization arguments, read back by
// TypeArgComponent.
func (p *Program) TypeArgs(i ir.Instance, args ...ir.ComponentType) { p.typeArgs[i] = args }

// Tuple marks ct as a tuple type composed of parts.
func (p *Program) Tuple(ct ir.ComponentType, parts ...ir.ComponentType) { p.tuples[ct] = parts }

// Nothing marks ct as the synthetic always-satisfiable component.
func (p *Program) Nothing(ct ir.ComponentType) { p.nothing[ct] = true }

// Call registers the resolution of call operand op within i's body.
func (p *Program) Call(i ir.Instance, op ir.CallOperand, res ir.CalleeResolution) {
	m, ok := p.calleeRes[i]
	if !ok {
		m = make(map[ir.CallOperand]ir.CalleeResolution)
		p.calleeRes[i] = m
	}
	m[op] = res
}

// Drop registers the destructor instance for a place dropped within i's
// body.
func (p *Program) Drop(i ir.Instance, place ir.Place, target ir.Instance) {
	m, ok := p.dropRes[i]
	if !ok {
		m = make(map[ir.Place]ir.Instance)
		p.dropRes[i] = m
	}
	m[place] = target
}

// MarkDynamicShim marks i as having no body of its own because it's a
// virtual-dispatch shim for dispatch key key.
func (p *Program) MarkDynamicShim(i ir.Instance, key ir.DynKey) { p.dynamicShim[i] = key }

// MarkUnavailable marks i as having no body and not being a dispatch shim
// (an extern, intrinsic, or otherwise opaque definition).
func (p *Program) MarkUnavailable(i ir.Instance) { p.unavailable[i] = true }

// --- ir.Adapter ---

func (p *Program) EntryFunction() (ir.Instance, bool) { return p.entry, p.hasEntry }

func (p *Program) Body(i ir.Instance) (*ir.Body, ir.BodyResult) {
	if _, ok := p.dynamicShim[i]; ok {
		return nil, ir.BodyDynamic
	}
	if p.unavailable[i] {
		return nil, ir.BodyUnavailable
	}
	b, ok := p.bodies[i]
	if !ok {
		return nil, ir.BodyUnavailable
	}
	return b, ir.BodyFound
}

func (p *Program) ResolveCallee(i ir.Instance, op ir.CallOperand) ir.CalleeResolution {
	if m, ok := p.calleeRes[i]; ok {
		if res, ok := m[op]; ok {
			return res
		}
	}
	return ir.CalleeResolution{}
}

func (p *Program) ResolveDrop(i ir.Instance, place ir.Place) (ir.Instance, bool) {
	if m, ok := p.dropRes[i]; ok {
		if t, ok := m[place]; ok {
			return t, true
		}
	}
	return ir.Instance{}, false
}

func (p *Program) DynKeyOf(i ir.Instance) (ir.DynKey, bool) {
	k, ok := p.dynamicShim[i]
	return k, ok
}

func (p *Program) InstanceName(i ir.Instance) string {
	if n, ok := p.names[i]; ok {
		return n
	}
	return i.Def
}

func (p *Program) TypeArgComponent(i ir.Instance, index int) (ir.ComponentType, bool) {
	args := p.typeArgs[i]
	if index < 0 || index >= len(args) {
		return ir.ComponentType{}, false
	}
	return args[index], true
}

func (p *Program) TupleComponents(c ir.ComponentType) ([]ir.ComponentType, bool) {
	parts, ok := p.tuples[c]
	return parts, ok
}

func (p *Program) IsNothingType(c ir.ComponentType) bool { return p.nothing[c] }

// --- terminator/block helpers ---

func Goto(to ir.BlockID) ir.Terminator {
	return ir.Terminator{Kind: ir.TermGoto, Successors: []ir.BlockID{to}}
}

func Branch(to ...ir.BlockID) ir.Terminator {
	return ir.Terminator{Kind: ir.TermBranchMulti, Successors: to}
}

// Call builds a Call terminator whose operand is op, resuming at ret.
func Call(op ir.CallOperand, ret ir.BlockID, loc ir.Location) ir.Terminator {
	return ir.Terminator{Kind: ir.TermCall, Successors: []ir.BlockID{ret}, Call: op, Span: loc}
}

// CallDiverges builds a Call terminator with no return edge (the callee
// never returns along this path).
func CallDiverges(op ir.CallOperand, loc ir.Location) ir.Terminator {
	return ir.Terminator{Kind: ir.TermCall, Call: op, Span: loc}
}

func Drop(place ir.Place, to ir.BlockID, loc ir.Location) ir.Terminator {
	return ir.Terminator{Kind: ir.TermDrop, Successors: []ir.BlockID{to}, DropPlace: place, Span: loc}
}

func Return() ir.Terminator { return ir.Terminator{Kind: ir.TermReturn} }
func Unwind() ir.Terminator { return ir.Terminator{Kind: ir.TermUnwind} }

// Blk builds a block with the given ID, terminator, and casts.
func Blk(id ir.BlockID, term ir.Terminator, casts ...ir.Cast) ir.Block {
	return ir.Block{ID: id, Casts: casts, Terminator: term}
}

func Reify(src ir.Instance, ptrType ir.ComponentType) ir.Cast {
	return ir.Cast{Kind: ir.CastReifyFnPointer, Source: src, PointerType: ptrType}
}

func Closure(src ir.Instance, ptrType ir.ComponentType) ir.Cast {
	return ir.Cast{Kind: ir.CastClosureFnPointer, Source: src, PointerType: ptrType}
}

func Unsize(targets ...ir.VtableTarget) ir.Cast {
	return ir.Cast{Kind: ir.CastUnsize, VtableTargets: targets}
}
