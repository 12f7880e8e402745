package goir

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"

	"github.com/Radbuglet/autoken-go/internal/collector"
	"github.com/Radbuglet/autoken-go/internal/config"
	"github.com/Radbuglet/autoken-go/internal/diagnostic"
	"github.com/Radbuglet/autoken-go/internal/facts"
	"github.com/Radbuglet/autoken-go/internal/ir"
	"github.com/Radbuglet/autoken-go/internal/primitives"
)

// loadOverlay builds an Adapter from in-memory source without touching the
// module cache: the same overlay trick golang.org/x/tools' own go/packages
// tests use to avoid writing temp files to disk.
func loadOverlay(t *testing.T, dir string, files map[string]string, entry string) *Adapter {
	t.Helper()

	overlay := make(map[string][]byte, len(files))
	for name, src := range files {
		overlay[filepath.Join(dir, name)] = []byte(src)
	}

	cfg := &packages.Config{
		Dir: dir,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedModule,
		Overlay: overlay,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		t.Fatalf("packages.Load: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatalf("packages failed to load")
	}

	a, err := loadFromPackages(pkgs, entry)
	if err != nil {
		t.Fatalf("loadFromPackages: %v", err)
	}
	return a
}

func TestLoadResolvesEntryAndStaticCall(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

func helper() int { return 1 }

func main() {
	_ = helper()
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}

	body, result := a.Body(entry)
	if result != ir.BodyFound {
		t.Fatalf("expected BodyFound, got %v", result)
	}
	if len(body.Blocks) == 0 {
		t.Fatalf("expected at least one block")
	}

	foundCall := false
	for _, b := range body.Blocks {
		if b.Terminator.Kind == ir.TermCall {
			foundCall = true
			res := a.ResolveCallee(entry, b.Terminator.Call)
			if res.Kind != ir.CalleeStatic {
				t.Fatalf("expected static callee, got %v", res.Kind)
			}
			if res.Static.Def == "" {
				t.Fatalf("expected resolved static callee name")
			}
		}
	}
	if !foundCall {
		t.Fatalf("expected a call terminator to appear in main's flattened body")
	}
}

func TestResolveDropAlwaysFalse(t *testing.T) {
	a := &Adapter{funcs: make(map[ir.Instance]*ssa.Function)}
	if _, ok := a.ResolveDrop(ir.Instance{}, nil); ok {
		t.Fatalf("expected ResolveDrop to always report no destructor")
	}
}

// TestMutualRecursionResolvesToDistinctStaticCallees covers S1/S2-style
// indirect recursion: main calls ping, ping calls pong, pong calls ping,
// each edge must resolve as an ordinary static callee so the fact engine's
// cycle detection (not goir) is what has to notice the loop.
func TestMutualRecursionResolvesToDistinctStaticCallees(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

func ping(n int) int {
	if n <= 0 {
		return 0
	}
	return pong(n - 1)
}

func pong(n int) int {
	if n <= 0 {
		return 0
	}
	return ping(n - 1)
}

func main() {
	_ = ping(3)
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}
	body, result := a.Body(entry)
	if result != ir.BodyFound {
		t.Fatalf("expected BodyFound for main, got %v", result)
	}

	var callee ir.Instance
	for _, b := range body.Blocks {
		if b.Terminator.Kind == ir.TermCall {
			res := a.ResolveCallee(entry, b.Terminator.Call)
			if res.Kind != ir.CalleeStatic {
				t.Fatalf("expected static callee, got %v", res.Kind)
			}
			callee = res.Static
		}
	}
	if callee.Def == "" {
		t.Fatalf("expected to resolve main's call into ping")
	}

	pingBody, result := a.Body(callee)
	if result != ir.BodyFound {
		t.Fatalf("expected BodyFound for ping, got %v", result)
	}
	sawPong := false
	for _, b := range pingBody.Blocks {
		if b.Terminator.Kind != ir.TermCall {
			continue
		}
		res := a.ResolveCallee(callee, b.Terminator.Call)
		if res.Kind == ir.CalleeStatic && res.Static.Def != callee.Def {
			sawPong = true
		}
	}
	if !sawPong {
		t.Fatalf("expected ping to statically call a distinct function (pong)")
	}
}

// TestGenericInstancesAreDistinctSubjects covers S3-style monomorphization:
// two instantiations of a generic function over different type arguments
// must produce distinct ir.Instance identities.
func TestGenericInstancesAreDistinctSubjects(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

func identity[T any](v T) T { return v }

func main() {
	_ = identity[int](1)
	_ = identity[string]("s")
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}
	body, _ := a.Body(entry)

	seen := map[string]bool{}
	for _, b := range body.Blocks {
		if b.Terminator.Kind != ir.TermCall {
			continue
		}
		res := a.ResolveCallee(entry, b.Terminator.Call)
		if res.Kind == ir.CalleeStatic && res.Static.Args != "" {
			seen[res.Static.Args] = true
		}
	}
	if len(seen) < 2 {
		t.Fatalf("expected at least two distinct monomorphizations, got %v", seen)
	}
}

// TestInterfaceDispatchProducesUnsizeCastWithKnownTarget covers S6-style
// trait-object dispatch: wrapping a concrete type into an interface must
// surface an Unsize cast whose vtable target is a known instance. How the
// call through the interface value resolves is not checked here.
func TestInterfaceDispatchProducesUnsizeCastWithKnownTarget(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

type Shape interface {
	Area() int
}

type Square struct{ Side int }

func (s Square) Area() int { return s.Side * s.Side }

func describe(s Shape) int { return s.Area() }

func main() {
	var s Shape = Square{Side: 2}
	_ = describe(s)
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}
	body, _ := a.Body(entry)

	var vtableTargets []ir.VtableTarget
	for _, b := range body.Blocks {
		for _, c := range b.Casts {
			if c.Kind == ir.CastUnsize {
				vtableTargets = append(vtableTargets, c.VtableTargets...)
			}
		}
	}
	if len(vtableTargets) == 0 {
		t.Fatalf("expected at least one Unsize cast with vtable targets")
	}

	areaInst := vtableTargets[0].Target
	var found bool
	for inst := range a.funcs {
		if inst.Def == areaInst.Def {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the vtable target (Square.Area) to resolve to a known instance")
	}
}

// TestDirectCallDoesNotRegisterCalleeAsFnPointerReify guards against a
// direct call's own callee operand being mistaken for a reified function
// pointer: every *ssa.Call's CallCommon.Value is a *ssa.Function operand
// for a static call, and if castsOf didn't exclude it, every directly
// called function would register itself in the FnPointer index under its
// own signature - unioning its facts with any unrelated function-pointer
// call sharing that signature.
func TestDirectCallDoesNotRegisterCalleeAsFnPointerReify(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

func helper() int { return 1 }

func main() {
	_ = helper()
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}
	body, _ := a.Body(entry)

	for _, b := range body.Blocks {
		for _, c := range b.Casts {
			if c.Kind == ir.CastReifyFnPointer {
				t.Fatalf("direct call must not also register its callee as a reified function pointer, got %+v", c)
			}
		}
	}
}

// TestFunctionPassedAsArgumentStillProducesReifyCast ensures the callee
// exclusion above doesn't over-reach: a function value genuinely passed as
// data (not called directly) must still surface as a Reify cast.
func TestFunctionPassedAsArgumentStillProducesReifyCast(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

func greet() int { return 1 }

func register(f func() int) int { return f() }

func main() {
	_ = register(greet)
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}
	body, _ := a.Body(entry)

	found := false
	for _, b := range body.Blocks {
		for _, c := range b.Casts {
			if c.Kind == ir.CastReifyFnPointer {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected greet, passed as an argument, to surface as a reified function pointer")
	}
}

// TestMakeClosureDoesNotDuplicateAsReifyCast ensures a closure's captured
// function operand is counted once, as CastClosureFnPointer, not also
// re-caught by the generic reify scan as a second CastReifyFnPointer for
// the same function.
func TestMakeClosureDoesNotDuplicateAsReifyCast(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

func main() {
	x := 1
	f := func() int { return x }
	_ = f()
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}
	body, _ := a.Body(entry)

	closures, reifies := 0, 0
	for _, b := range body.Blocks {
		for _, c := range b.Casts {
			switch c.Kind {
			case ir.CastClosureFnPointer:
				closures++
			case ir.CastReifyFnPointer:
				reifies++
			}
		}
	}
	if closures == 0 {
		t.Fatalf("expected at least one closure cast")
	}
	if reifies != 0 {
		t.Fatalf("expected the closure's captured function to not also appear as a reify cast, got %d", reifies)
	}
}

// TestIsNothingTypeRecognizesMarkerFieldNotEmptyStruct covers the §6
// Nothing-type contract: only a single-field struct whose field is named
// the agreed marker counts, not every zero-size struct - a real token type
// legitimately declared as `struct{}` must still contribute facts.
func TestIsNothingTypeRecognizesMarkerFieldNotEmptyStruct(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

type Nothing struct {
	__autoken_nothing_type_field_indicator bool
}

func mark[T any]() {}

func main() {
	mark[Nothing]()
	mark[struct{}]()
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}
	body, _ := a.Body(entry)

	var nothingCT, emptyCT ir.ComponentType
	for _, b := range body.Blocks {
		if b.Terminator.Kind != ir.TermCall {
			continue
		}
		res := a.ResolveCallee(entry, b.Terminator.Call)
		if res.Kind != ir.CalleeStatic {
			continue
		}
		ct, ok := a.TypeArgComponent(res.Static, 0)
		if !ok {
			continue
		}
		if strings.Contains(ct.String(), "Nothing") {
			nothingCT = ct
		} else {
			emptyCT = ct
		}
	}
	if nothingCT.IsZero() || emptyCT.IsZero() {
		t.Fatalf("expected to resolve both monomorphizations' type arguments")
	}
	if !a.IsNothingType(nothingCT) {
		t.Fatalf("expected the marker-field struct to be recognized as the Nothing type")
	}
	if a.IsNothingType(emptyCT) {
		t.Fatalf("expected a literal empty struct to NOT be recognized as the Nothing type")
	}
}

// TestControlFlowLeakDisagreementProducesD3 covers S5: a mutable borrow
// taken on only one arm of an if, with no unborrow on either arm, must be
// flagged at the merge point. Unlike the other scenario tests above, this
// one drives the full collector+facts pipeline (not just goir in
// isolation), since D3 is the fact engine's diagnosis of what goir reports,
// not something goir itself decides.
func TestControlFlowLeakDisagreementProducesD3(t *testing.T) {
	dir := t.TempDir()
	a := loadOverlay(t, dir, map[string]string{
		"go.mod": "module example.com/sample\n\ngo 1.22\n",
		"main.go": `package main

func __autoken_borrow_mutably[T any]() {}

func cond() bool { return true }

func leaky() {
	if cond() {
		__autoken_borrow_mutably[uint32]()
	}
}

func main() {
	leaky()
}
`,
	}, "example.com/sample.main")

	entry, ok := a.EntryFunction()
	if !ok {
		t.Fatalf("expected entry function to resolve")
	}

	prims := primitives.NewTable(&config.File{})
	graph := collector.Collect(a, prims, entry)
	emitter := diagnostic.NewEmitter(nil)
	table := facts.NewTable()
	facts.NewEngine(a, graph, prims, table, emitter).Analyze(entry)
	report := emitter.Report()

	found := false
	for _, d := range report.Diagnostics {
		if d.Kind == diagnostic.D3LeakDisagreement {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a D3 leak-disagreement diagnostic, got %+v", report.Diagnostics)
	}
}
