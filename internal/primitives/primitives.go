// Package primitives recognizes the fixed set of marker functions the fact
// engine treats specially: the four borrow/unborrow operations, the two
// alias-escape hatches, and the black-box opacity marker. Recognition is by
// exact leaf name only, matching spec §4.3 and config.
package primitives

import (
	"strings"

	"github.com/Radbuglet/autoken-go/internal/config"
)

// Kind classifies a recognized primitive.
type Kind int

const (
	KindBorrowMutably Kind = iota
	KindUnborrowMutably
	KindBorrowImmutably
	KindUnborrowImmutably
	KindAssumeNoAliasIn
	KindAssumeNoAlias
	KindBlackBox
)

// Table maps leaf names to primitive kinds. The zero Table recognizes
// nothing; use NewTable to get the default name set, optionally remapped by
// a run config.
type Table struct {
	byName map[string]Kind
}

// NewTable builds the default recognizer, applying any renames from cfg.
// A rename redirects recognition from its "to" name; the original
// `__autoken_*` name is dropped once renamed, since a front end that
// renames a marker no longer emits the original spelling.
func NewTable(cfg *config.File) *Table {
	t := &Table{byName: map[string]Kind{
		config.BorrowMutablyName:     KindBorrowMutably,
		config.UnborrowMutablyName:   KindUnborrowMutably,
		config.BorrowImmutablyName:   KindBorrowImmutably,
		config.UnborrowImmutablyName: KindUnborrowImmutably,
		config.AssumeNoAliasInName:   KindAssumeNoAliasIn,
		config.AssumeNoAliasName:     KindAssumeNoAlias,
		config.AssumeBlackBoxName:    KindBlackBox,
	}}
	if cfg == nil {
		return t
	}
	for _, r := range cfg.Renames {
		kind, ok := t.byName[r.From]
		if !ok {
			continue
		}
		delete(t.byName, r.From)
		t.byName[r.To] = kind
	}
	return t
}

// Recognize reports whether name (a fully-qualified instance name) matches
// a primitive, keyed on the name's final path segment so it's indifferent
// to whatever module path or receiver type prefixes the adapter produced.
func (t *Table) Recognize(name string) (Kind, bool) {
	leaf := leafOf(name)
	k, ok := t.byName[leaf]
	return k, ok
}

// IsBlackBox is a convenience wrapper used by the call-graph collector,
// which must stop descending into a black-box instance's body entirely
// rather than just special-casing its facts.
func (t *Table) IsBlackBox(name string) bool {
	k, ok := t.Recognize(name)
	return ok && k == KindBlackBox
}

// IsHardcoded reports whether kind has a fixed per-component fact row
// (the four borrow/unborrow operations and the black-box marker), as
// opposed to being "transparent" (the two assume_no_alias variants, whose
// facts come from analyzing the body normally and post-processing the
// result).
func IsHardcoded(kind Kind) bool {
	switch kind {
	case KindBorrowMutably, KindUnborrowMutably, KindBorrowImmutably, KindUnborrowImmutably, KindBlackBox:
		return true
	default:
		return false
	}
}

func leafOf(name string) string {
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		return name[i+1:]
	}
	return name
}
