// Package collector builds the call graph by walking reachable instances
// from the program entry point, recording two indirect-call indexes: one
// from function-pointer type to every instance ever coerced into it, and
// one from (virtual method, generic args) to every concrete override
// reachable through an unsizing coercion. This is a plain reachability DFS,
// not a fixpoint solve; it never needs to revisit a node once discovered.
//
// Grounded on the teacher's internal/analyzer walker's traversal style and
// the collect_reachable_instances pass in the original analyzer (the
// CollectAnalyzer in src/rustc/src/analyzer.rs).
package collector

import (
	"sort"

	"github.com/Radbuglet/autoken-go/internal/ir"
	"github.com/Radbuglet/autoken-go/internal/primitives"
)

// Result holds the two indirect-call indexes discovered during collection.
type Result struct {
	fnPointers map[ir.ComponentType]map[ir.Instance]struct{}
	dynamic    map[ir.DynKey]map[ir.Instance]struct{}
}

func newResult() *Result {
	return &Result{
		fnPointers: make(map[ir.ComponentType]map[ir.Instance]struct{}),
		dynamic:    make(map[ir.DynKey]map[ir.Instance]struct{}),
	}
}

// FnPointerTargets returns every instance ever coerced into function
// pointers of type c, sorted for deterministic iteration.
func (r *Result) FnPointerTargets(c ir.ComponentType) []ir.Instance {
	return sortedInstances(r.fnPointers[c])
}

// DynamicTargets returns every concrete override collected under dispatch
// key k, sorted for deterministic iteration.
func (r *Result) DynamicTargets(k ir.DynKey) []ir.Instance {
	return sortedInstances(r.dynamic[k])
}

func sortedInstances(set map[ir.Instance]struct{}) []ir.Instance {
	out := make([]ir.Instance, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Def != out[b].Def {
			return out[a].Def < out[b].Def
		}
		return out[a].Args < out[b].Args
	})
	return out
}

func (r *Result) addFnPointer(c ir.ComponentType, i ir.Instance) bool {
	set, ok := r.fnPointers[c]
	if !ok {
		set = make(map[ir.Instance]struct{})
		r.fnPointers[c] = set
	}
	if _, seen := set[i]; seen {
		return false
	}
	set[i] = struct{}{}
	return true
}

func (r *Result) addDynamic(k ir.DynKey, i ir.Instance) bool {
	set, ok := r.dynamic[k]
	if !ok {
		set = make(map[ir.Instance]struct{})
		r.dynamic[k] = set
	}
	if _, seen := set[i]; seen {
		return false
	}
	set[i] = struct{}{}
	return true
}

// Collect performs a DFS over every instance reachable from entry via
// direct calls, drops, function-pointer reification, and trait-object
// unsizing, returning the indirect-call indexes accumulated along the way.
func Collect(adapter ir.Adapter, prims *primitives.Table, entry ir.Instance) *Result {
	result := newResult()
	visited := make(map[ir.Instance]struct{})
	stack := []ir.Instance{entry}

	enqueue := func(i ir.Instance) {
		if _, seen := visited[i]; seen {
			return
		}
		visited[i] = struct{}{}
		stack = append(stack, i)
	}

	for len(stack) > 0 {
		inst := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		name := adapter.InstanceName(inst)
		if prims.IsBlackBox(name) {
			// An assume_black_box call never exposes its body to analysis;
			// nothing reachable only through it is part of the call graph.
			continue
		}

		body, res := adapter.Body(inst)
		if res != ir.BodyFound {
			continue
		}

		for _, block := range body.Blocks {
			for _, cast := range block.Casts {
				switch cast.Kind {
				case ir.CastReifyFnPointer, ir.CastClosureFnPointer:
					if result.addFnPointer(cast.PointerType, cast.Source) {
						enqueue(cast.Source)
					}
				case ir.CastUnsize:
					for _, vt := range cast.VtableTargets {
						if result.addDynamic(vt.Method, vt.Target) {
							enqueue(vt.Target)
						}
					}
				}
			}

			term := block.Terminator
			switch term.Kind {
			case ir.TermCall:
				switch res := adapter.ResolveCallee(inst, term.Call); res.Kind {
				case ir.CalleeStatic:
					enqueue(res.Static)
				case ir.CalleeDynamic:
					for _, target := range result.DynamicTargets(res.Dynamic) {
						enqueue(target)
					}
				}
			case ir.TermDrop:
				if dropInst, ok := adapter.ResolveDrop(inst, term.DropPlace); ok {
					enqueue(dropInst)
				}
			}
		}
	}

	return result
}
