package goir

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/Radbuglet/autoken-go/internal/ir"
)

// flattener turns one ssa.Function's basic blocks into ir.Blocks, splitting
// after every call so each ir.Block carries at most one Call terminator.
type flattener struct {
	a      *Adapter
	fn     *ssa.Function
	blocks []ir.Block
	startOf []int // real block index -> synthetic id of its first sub-block
}

func newFlattener(a *Adapter, fn *ssa.Function) *flattener {
	return &flattener{a: a, fn: fn, startOf: make([]int, len(fn.Blocks))}
}

func (fb *flattener) flatten() {
	next := 0
	for _, b := range fb.fn.Blocks {
		fb.startOf[b.Index] = next
		next += subBlockCount(b)
	}

	for _, b := range fb.fn.Blocks {
		fb.flattenBlock(b)
	}
}

func subBlockCount(b *ssa.BasicBlock) int {
	n := 1
	for _, instr := range b.Instrs {
		if _, ok := instr.(*ssa.Call); ok {
			n++
		}
	}
	return n
}

func (fb *flattener) flattenBlock(b *ssa.BasicBlock) {
	id := fb.startOf[b.Index]
	var casts []ir.Cast

	flush := func(term ir.Terminator) {
		fb.blocks = append(fb.blocks, ir.Block{ID: ir.BlockID(id), Casts: casts, Terminator: term})
		casts = nil
		id++
	}

	for _, instr := range b.Instrs {
		casts = append(casts, fb.castsOf(instr)...)

		call, isCall := instr.(*ssa.Call)
		if !isCall {
			continue
		}
		flush(ir.Terminator{
			Kind:       ir.TermCall,
			Successors: []ir.BlockID{ir.BlockID(id + 1)},
			Call:       call.Common(),
			Span:       fb.posOf(call),
		})
	}

	last := b.Instrs[len(b.Instrs)-1]
	switch t := last.(type) {
	case *ssa.Jump:
		flush(ir.Terminator{Kind: ir.TermGoto, Successors: []ir.BlockID{ir.BlockID(fb.startOf[b.Succs[0].Index])}, Span: fb.posOf(t)})
	case *ssa.If:
		flush(ir.Terminator{
			Kind: ir.TermBranchMulti,
			Successors: []ir.BlockID{
				ir.BlockID(fb.startOf[b.Succs[0].Index]),
				ir.BlockID(fb.startOf[b.Succs[1].Index]),
			},
			Span: fb.posOf(t),
		})
	case *ssa.Return:
		flush(ir.Terminator{Kind: ir.TermReturn, Span: fb.posOf(t)})
	default:
		// *ssa.Panic, or any other terminator: treat as an unwind exit.
		flush(ir.Terminator{Kind: ir.TermUnwind, Span: fb.posOf(last)})
	}
}

func (fb *flattener) posOf(v interface{ Pos() token.Pos }) ir.Location {
	pos := fb.a.prog.Fset.Position(v.Pos())
	return ir.Location{File: pos.Filename, Line: pos.Line, Col: pos.Column}
}

// castsOf recognizes the two coercions the collector needs to follow:
// MakeInterface (unsizing to a trait object) and a bare function value
// used as data rather than called directly (reification, including
// closures created by MakeClosure).
//
// A direct call's callee operand and a closure's captured function operand
// are both *ssa.Function operands but are not reifications - they're
// already accounted for by the Call terminator and the Closure cast above.
// Counting them again would register every directly-called function under
// the FnPointer index for its own signature, so an unrelated function
// pointer call of the same signature would union facts with every
// statically-called function sharing it.
func (fb *flattener) castsOf(instr ssa.Instruction) []ir.Cast {
	var out []ir.Cast

	var skip ssa.Value

	if mi, ok := instr.(*ssa.MakeInterface); ok {
		if targets := fb.vtableTargets(mi); len(targets) > 0 {
			out = append(out, ir.Cast{Kind: ir.CastUnsize, VtableTargets: targets})
		}
	}

	if mc, ok := instr.(*ssa.MakeClosure); ok {
		if fn, ok := mc.Fn.(*ssa.Function); ok {
			out = append(out, ir.Cast{
				Kind:        ir.CastClosureFnPointer,
				Source:      fb.a.instanceOf(fn),
				PointerType: ptrTypeKey(fn.Signature),
			})
		}
		skip = mc.Fn
	}

	if call, ok := instr.(*ssa.Call); ok && !call.Common().IsInvoke() {
		skip = call.Common().Value
	}

	for _, rand := range instr.Operands(nil) {
		if rand == nil || *rand == skip {
			continue
		}
		if fn, ok := (*rand).(*ssa.Function); ok {
			out = append(out, ir.Cast{
				Kind:        ir.CastReifyFnPointer,
				Source:      fb.a.instanceOf(fn),
				PointerType: ptrTypeKey(fn.Signature),
			})
		}
	}

	return out
}

// vtableTargets enumerates every method of the interface mi's result type is
// stored into, resolving each to the concrete method implemented by mi.X's
// type. Embedded methods and generic method instantiation are resolved by
// prog.MethodValue, the same path go/ssa itself uses to build invoke-mode
// call targets.
func (fb *flattener) vtableTargets(mi *ssa.MakeInterface) []ir.VtableTarget {
	iface, ok := mi.Type().Underlying().(*types.Interface)
	if !ok {
		return nil
	}
	concrete := mi.X.Type()

	var targets []ir.VtableTarget
	for i := 0; i < iface.NumMethods(); i++ {
		m := iface.Method(i)
		sel := fb.a.prog.MethodSets.MethodSet(concrete).Lookup(m.Pkg(), m.Name())
		if sel == nil {
			continue
		}
		fn := fb.a.prog.MethodValue(sel)
		if fn == nil {
			continue
		}
		targets = append(targets, ir.VtableTarget{
			Method: dynKey(m, mi.Type()),
			Target: fb.a.instanceOf(fn),
		})
	}
	return targets
}
