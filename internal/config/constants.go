package config

// Version is the current autoken-go version.
// Set at build time via -ldflags or by writing to this file.
var Version = "0.1.0"

// Primitive marker names recognized by internal/primitives. A front-end must
// lower each borrow/unborrow/escape-hatch call site to a function whose leaf
// name matches one of these exactly; no other signal (types, attributes,
// comments) is consulted.
const (
	BorrowMutablyName     = "__autoken_borrow_mutably"
	UnborrowMutablyName   = "__autoken_unborrow_mutably"
	BorrowImmutablyName   = "__autoken_borrow_immutably"
	UnborrowImmutablyName = "__autoken_unborrow_immutably"
	AssumeNoAliasInName   = "__autoken_assume_no_alias_in"
	AssumeNoAliasName     = "__autoken_assume_no_alias"
	AssumeBlackBoxName    = "__autoken_assume_black_box"
)

// NothingFieldIndicator is the field name that marks a component type as the
// synthetic "Nothing" type: borrowing Nothing proves nothing and is always
// satisfiable, regardless of what else is outstanding.
const NothingFieldIndicator = "__autoken_nothing_type_field_indicator"

// DefaultEntryPoint names the entry function used when a run config doesn't
// override it.
const DefaultEntryPoint = "main.main"

// IsTestMode indicates if the program is running in test mode.
var IsTestMode = false

// Exit codes surfaced by cmd/autoken.
const (
	ExitClean       = 0 // no diagnostics of error severity
	ExitDiagnostics = 1 // analysis completed, at least one error-severity diagnostic
	ExitFatal       = 2 // the run itself could not complete (I/O, config, internal invariant)
)
