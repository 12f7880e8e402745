// Package ir defines the pull-based contract that every front end (a real
// Go-source adapter, or a synthetic test builder) implements so the fact
// engine and call-graph collector never depend on a concrete compiler.
//
// The contract deliberately erases everything the engine doesn't need:
// front ends hand back pre-resolved, already-monomorphized identities
// (Instance, ComponentType, DynKey) rather than raw syntax trees, so the
// engine's algorithms stay identical regardless of what produced them.
package ir

// ComponentType is an opaque, region-erased identity for a borrowable type.
// Two component types are the same domain iff their keys are equal; it is
// the adapter's job to produce equal keys for types that are equal after
// erasing lifetimes/regions, and distinct keys otherwise.
type ComponentType struct {
	key string
}

// Component builds a ComponentType from an adapter-chosen canonical key.
// The zero ComponentType (empty key) is reserved to mean "not applicable"
// and is used by diagnostics that aren't about a single component.
func Component(key string) ComponentType { return ComponentType{key: key} }

func (c ComponentType) String() string   { return c.key }
func (c ComponentType) IsZero() bool     { return c.key == "" }

// Instance identifies one fully-monomorphized function: a definition plus
// its resolved generic arguments (Args is "" for non-generic definitions).
type Instance struct {
	Def  string
	Args string
}

func (i Instance) String() string {
	if i.Args == "" {
		return i.Def
	}
	return i.Def + "[" + i.Args + "]"
}

// DynKey identifies a virtual dispatch group: a trait method together with
// the generic arguments under which it's being invoked. Every concrete
// override reachable through some unsizing coercion to that (method, args)
// pair is collected under the same key.
type DynKey struct {
	Method string
	Args   string
}

// SubjectKind discriminates the three things the fact engine can analyze.
type SubjectKind int

const (
	// SubjectInstance is an ordinary monomorphized function.
	SubjectInstance SubjectKind = iota
	// SubjectFnPointer is the synthetic union of every concrete function
	// ever reified to, or coerced into, a given function-pointer type.
	SubjectFnPointer
	// SubjectDynamic is the synthetic union of every concrete override
	// collected under one virtual-dispatch (method, args) key.
	SubjectDynamic
)

// Subject is the fact table's key: either a concrete Instance, or one of
// the two synthetic "union of reachable targets" nodes.
type Subject struct {
	Kind          SubjectKind
	Instance      Instance
	FnPointerType ComponentType
	Dynamic       DynKey
}

func InstanceSubject(i Instance) Subject { return Subject{Kind: SubjectInstance, Instance: i} }
func FnPointerSubject(c ComponentType) Subject {
	return Subject{Kind: SubjectFnPointer, FnPointerType: c}
}
func DynamicSubject(k DynKey) Subject { return Subject{Kind: SubjectDynamic, Dynamic: k} }

// Location is a best-effort source position for diagnostics. The zero value
// (empty File) means "no better location was available".
type Location struct {
	File string
	Line int
	Col  int
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return l.File
}

// BlockID indexes a Body's Blocks slice.
type BlockID int

// TerminatorKind classifies how control leaves a block.
type TerminatorKind int

const (
	TermGoto        TerminatorKind = iota // unconditional jump, one successor
	TermBranchMulti                       // conditional/switch, N successors
	TermCall                              // a call, with an optional return-edge successor
	TermDrop                              // destructor invocation, one successor
	TermReturn                            // exits to the function's synthetic exit node
	TermUnwind                            // exits without merging leak state (panic/abort path)
)

// CallOperand is an opaque, adapter-defined handle for the callee operand
// of a Call terminator. The engine never inspects it directly; it only
// passes it back to Adapter.ResolveCallee.
type CallOperand any

// Place is an opaque, adapter-defined handle for a local being dropped. The
// engine only passes it back to Adapter.ResolveDrop.
type Place any

// Terminator describes the last instruction of a block.
type Terminator struct {
	Kind       TerminatorKind
	Successors []BlockID
	Call       CallOperand
	DropPlace  Place
	Span       Location
}

// CastKind classifies a coercion statement the call-graph collector must
// follow to discover indirectly-reachable instances.
type CastKind int

const (
	CastReifyFnPointer  CastKind = iota // a bare fn item reified to a function pointer
	CastClosureFnPointer                // a closure coerced to a function-pointer value
	CastUnsize                          // a concrete type coerced to a trait object
)

// VtableTarget is one (method, args) -> concrete instance edge contributed
// by an unsizing coercion, already monomorphized against the source type.
type VtableTarget struct {
	Method DynKey
	Target Instance
}

// Cast describes one coercion statement found while scanning a block. For
// CastReifyFnPointer/CastClosureFnPointer, Source/PointerType are valid. For
// CastUnsize, VtableTargets is valid (already peeled, enumerated, and
// monomorphized by the adapter: the collector just records the edges).
type Cast struct {
	Kind          CastKind
	Source        Instance
	PointerType   ComponentType
	VtableTargets []VtableTarget
}

// Block is one basic block of a function body.
type Block struct {
	ID         BlockID
	Casts      []Cast
	Terminator Terminator
}

// Body is the per-function view the fact engine walks. Span is the
// function's own definition site, used as the location for diagnostics that
// describe the function as a whole (D4, D5) rather than one call site.
type Body struct {
	Blocks []Block
	Span   Location
}

// CalleeKind discriminates the three ways Adapter.ResolveCallee can resolve
// a call operand.
type CalleeKind int

const (
	CalleeStatic     CalleeKind = iota // a single concrete instance
	CalleeFnPointer                    // through a function-pointer-typed value
	CalleeDynamic                      // a virtual call through a trait object
)

// CalleeResolution is the result of resolving a Call terminator's operand.
type CalleeResolution struct {
	Kind        CalleeKind
	Static      Instance
	FnPointerType ComponentType
	Dynamic     DynKey
}

// BodyResult discriminates the outcomes of Adapter.Body.
type BodyResult int

const (
	BodyFound      BodyResult = iota // a concrete body is available
	BodyDynamic                      // no body because the instance is itself a dispatch shim
	BodyUnavailable                  // no body, and not a dispatch shim (extern/intrinsic/opaque)
)

// Adapter is the pull-based IR front end. Every method is a pure query:
// implementations must not mutate shared state or perform I/O, since the
// engine may call them in any order and cache results indefinitely.
type Adapter interface {
	// EntryFunction returns the instance analysis should start from.
	EntryFunction() (Instance, bool)

	// Body returns i's control-flow graph, or explains why none exists.
	Body(i Instance) (*Body, BodyResult)

	// ResolveCallee resolves a Call terminator's operand to a concrete
	// target, a function-pointer type, or a dynamic-dispatch group.
	ResolveCallee(i Instance, op CallOperand) CalleeResolution

	// ResolveDrop resolves the destructor instance for a place being
	// dropped, if the place's type has one.
	ResolveDrop(i Instance, place Place) (Instance, bool)

	// DynKeyOf returns the (method, args) identity of i when i is itself a
	// dynamic-dispatch shim (Body returned BodyDynamic for i).
	DynKeyOf(i Instance) (DynKey, bool)

	// InstanceName returns i's fully-qualified definition name. The
	// recognizer matches primitives against this name's final path
	// segment.
	InstanceName(i Instance) string

	// TypeArgComponent returns the component type of i's index'th
	// monomorphization argument. Used to read the borrowed type out of a
	// primitive's single type parameter.
	TypeArgComponent(i Instance, index int) (ComponentType, bool)

	// TupleComponents reports whether c is a tuple type, returning its
	// element component types in order. Used to expand
	// assume_no_alias_in's argument when it's a tuple of types.
	TupleComponents(c ComponentType) ([]ComponentType, bool)

	// IsNothingType reports whether c is the synthetic "Nothing" marker
	// component (a type whose only field is the marker field).
	IsNothingType(c ComponentType) bool
}

// FatalError signals that analysis could not complete at all (as opposed to
// completing and reporting diagnostics). Drivers map it to ExitFatal.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }
