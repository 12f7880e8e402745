// Package goir adapts real Go source to the ir.Adapter contract using
// golang.org/x/tools' go/packages loader and go/ssa builder, the same
// toolchain the teacher's internal/ext/inspector.go uses to bind real Go
// types for code generation.
//
// Go's SSA form doesn't split a block at each call the way MIR does: a
// block can contain several calls before its terminator. Body flattens
// each ssa.BasicBlock into one or more ir.Block values, introducing a
// synthetic edge after every call instruction so the fact engine still
// gets one terminator per call site.
//
// Go has no destructors, so ResolveDrop always reports "no drop needed";
// the only way to exercise the engine's Drop handling is through
// internal/ir/irtest's synthetic builder.
//
// Dynamic dispatch is recovered from ssa.MakeInterface (Go's analogue of
// an unsizing coercion: wrapping a concrete value as an interface value)
// and ssa.Call in invoke mode (a call through an interface value). Neither
// needs golang.org/x/tools/go/callgraph/cha's whole-program class
// hierarchy analysis: MakeInterface already tells us, precisely and per
// call site, which concrete type is being coerced, which is a strictly
// stronger signal than CHA's reachable-implementations approximation.
package goir

import (
	"fmt"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/Radbuglet/autoken-go/internal/config"
	"github.com/Radbuglet/autoken-go/internal/ir"
)

// Adapter is an ir.Adapter backed by one loaded, SSA-built Go program.
type Adapter struct {
	prog  *ssa.Program
	funcs map[ir.Instance]*ssa.Function
	comps map[string]types.Type // component key -> the types.Type it was built from

	entry   ir.Instance
	hasEntry bool
}

// Load builds an Adapter from the Go packages matching patterns (in the
// same syntax `go list` accepts), rooted at dir. entryFunc is the
// fully-qualified entry function name, e.g. "main.main" or
// "example.com/mod/pkg.Run".
func Load(dir string, patterns []string, entryFunc string) (*Adapter, error) {
	cfg := &packages.Config{
		Dir: dir,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedModule,
	}
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, &ir.FatalError{Reason: "load packages", Err: err}
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, &ir.FatalError{Reason: fmt.Sprintf("packages %v failed to load cleanly", patterns)}
	}

	return loadFromPackages(pkgs, entryFunc)
}

func loadFromPackages(pkgs []*packages.Package, entryFunc string) (*Adapter, error) {
	prog, _ := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	a := &Adapter{prog: prog, funcs: make(map[ir.Instance]*ssa.Function), comps: make(map[string]types.Type)}
	for fn := range ssautil.AllFunctions(prog) {
		inst := a.instanceOf(fn)
		a.funcs[inst] = fn
		if fn.Synthetic == "" && instanceName(fn) == entryFunc {
			a.entry, a.hasEntry = inst, true
		}
	}
	return a, nil
}

func (a *Adapter) EntryFunction() (ir.Instance, bool) { return a.entry, a.hasEntry }

func (a *Adapter) instanceOf(fn *ssa.Function) ir.Instance {
	args := ""
	if orig := fn.Origin(); orig != nil {
		parts := make([]string, 0, len(fn.TypeArgs()))
		for _, t := range fn.TypeArgs() {
			parts = append(parts, t.String())
		}
		args = strings.Join(parts, ",")
		return ir.Instance{Def: instanceName(orig), Args: args}
	}
	return ir.Instance{Def: instanceName(fn)}
}

func instanceName(fn *ssa.Function) string {
	if fn.Pkg != nil {
		if recv := fn.Signature.Recv(); recv != nil {
			return fn.Pkg.Pkg.Path() + "." + recv.Type().String() + "." + fn.Name()
		}
		return fn.Pkg.Pkg.Path() + "." + fn.Name()
	}
	return fn.String()
}

func ptrTypeKey(sig *types.Signature) ir.ComponentType { return ir.Component("func:" + sig.String()) }

func dynKey(method *types.Func, ifaceType types.Type) ir.DynKey {
	return ir.DynKey{Method: method.FullName(), Args: ifaceType.String()}
}

// Body flattens fn's SSA basic blocks, splitting after every call
// instruction so each ir.Block has at most one call.
func (a *Adapter) Body(i ir.Instance) (*ir.Body, ir.BodyResult) {
	fn, ok := a.funcs[i]
	if !ok {
		return nil, ir.BodyUnavailable
	}
	if fn.Blocks == nil {
		// A declared-but-bodyless function (cgo, assembly, external linkname):
		// the engine should treat it as opaque, not as a dispatch shim.
		return nil, ir.BodyUnavailable
	}

	fb := newFlattener(a, fn)
	fb.flatten()
	span := ir.Location{}
	if fn.Pkg != nil && len(fn.Blocks) > 0 {
		pos := a.prog.Fset.Position(fn.Pos())
		span = ir.Location{File: pos.Filename, Line: pos.Line, Col: pos.Column}
	}
	return &ir.Body{Blocks: fb.blocks, Span: span}, ir.BodyFound
}

func (a *Adapter) ResolveCallee(i ir.Instance, op ir.CallOperand) ir.CalleeResolution {
	call, ok := op.(*ssa.CallCommon)
	if !ok {
		return ir.CalleeResolution{}
	}
	if call.IsInvoke() {
		return ir.CalleeResolution{Kind: ir.CalleeDynamic, Dynamic: dynKey(call.Method, call.Value.Type())}
	}
	if staticFn := call.StaticCallee(); staticFn != nil {
		return ir.CalleeResolution{Kind: ir.CalleeStatic, Static: a.instanceOf(staticFn)}
	}
	if sig, isSig := call.Value.Type().Underlying().(*types.Signature); isSig {
		return ir.CalleeResolution{Kind: ir.CalleeFnPointer, FnPointerType: ptrTypeKey(sig)}
	}
	return ir.CalleeResolution{}
}

// ResolveDrop always reports no destructor: Go has no Drop glue.
func (a *Adapter) ResolveDrop(ir.Instance, ir.Place) (ir.Instance, bool) { return ir.Instance{}, false }

// DynKeyOf never applies here: goir never reports BodyDynamic, since Go
// has no separate "dispatch shim" instance distinct from the interface
// method declaration itself (invoke-mode calls are resolved directly in
// ResolveCallee).
func (a *Adapter) DynKeyOf(ir.Instance) (ir.DynKey, bool) { return ir.DynKey{}, false }

func (a *Adapter) InstanceName(i ir.Instance) string { return i.Def }

func (a *Adapter) TypeArgComponent(i ir.Instance, index int) (ir.ComponentType, bool) {
	fn, ok := a.funcs[i]
	if !ok {
		return ir.ComponentType{}, false
	}
	targs := fn.TypeArgs()
	if index < 0 || index >= len(targs) {
		return ir.ComponentType{}, false
	}
	return a.componentOf(targs[index]), true
}

// componentOf builds a ComponentType keyed on t's canonical string, keeping
// a side table back to t so IsNothingType can inspect its fields - the
// string key alone can't tell a marker struct from an ordinary one.
func (a *Adapter) componentOf(t types.Type) ir.ComponentType {
	key := t.String()
	if _, ok := a.comps[key]; !ok {
		a.comps[key] = t
	}
	return ir.Component(key)
}

func (a *Adapter) TupleComponents(c ir.ComponentType) ([]ir.ComponentType, bool) {
	key := c.String()
	if !strings.HasPrefix(key, "(") || !strings.HasSuffix(key, ")") || !strings.Contains(key, ",") {
		return nil, false
	}
	parts := strings.Split(strings.Trim(key, "()"), ", ")
	out := make([]ir.ComponentType, 0, len(parts))
	for _, p := range parts {
		out = append(out, ir.Component(p))
	}
	return out, true
}

// IsNothingType recognizes the agreed single-field marker struct (its sole
// field named config.NothingFieldIndicator) rather than the literal empty
// struct: a real borrow token type happens to often be declared as
// `struct{}` too, and that must still contribute facts normally.
func (a *Adapter) IsNothingType(c ir.ComponentType) bool {
	t, ok := a.comps[c.String()]
	if !ok {
		return false
	}
	st, ok := t.Underlying().(*types.Struct)
	if !ok || st.NumFields() != 1 {
		return false
	}
	return st.Field(0).Name() == config.NothingFieldIndicator
}

// Fingerprint returns a best-effort change signature for i, suitable as the
// fingerprintOf callback internal/cache needs: a function's fully
// qualified name and signature, which changes whenever its declaration
// (and therefore plausibly its body) does. It does not hash source bytes,
// so a body-only edit that leaves the signature untouched is not detected.
func (a *Adapter) Fingerprint(i ir.Instance) string {
	fn, ok := a.funcs[i]
	if !ok {
		return ""
	}
	return fn.String()
}
