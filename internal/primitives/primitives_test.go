package primitives

import (
	"testing"

	"github.com/Radbuglet/autoken-go/internal/config"
)

func TestDefaultNamesAreRecognized(t *testing.T) {
	table := NewTable(&config.File{})
	cases := map[string]Kind{
		config.BorrowMutablyName:     KindBorrowMutably,
		config.UnborrowMutablyName:   KindUnborrowMutably,
		config.BorrowImmutablyName:   KindBorrowImmutably,
		config.UnborrowImmutablyName: KindUnborrowImmutably,
		config.AssumeNoAliasInName:   KindAssumeNoAliasIn,
		config.AssumeNoAliasName:     KindAssumeNoAlias,
		config.AssumeBlackBoxName:    KindBlackBox,
	}
	for name, want := range cases {
		got, ok := table.Recognize(name)
		if !ok || got != want {
			t.Errorf("Recognize(%q) = %v, %v; want %v, true", name, got, ok, want)
		}
	}
}

func TestRecognizeMatchesOnLeafNameOnly(t *testing.T) {
	table := NewTable(&config.File{})
	got, ok := table.Recognize("example.com/pkg.SomeType." + config.BorrowMutablyName)
	if !ok || got != KindBorrowMutably {
		t.Fatalf("expected qualified name to match on leaf, got %v, %v", got, ok)
	}
}

func TestUnrecognizedNameIsRejected(t *testing.T) {
	table := NewTable(&config.File{})
	if _, ok := table.Recognize("fmt.Println"); ok {
		t.Fatalf("expected fmt.Println to not be recognized")
	}
}

func TestRenameRedirectsRecognition(t *testing.T) {
	table := NewTable(&config.File{Renames: []config.Rename{
		{From: config.BorrowMutablyName, To: "borrowMutReplacement"},
	}})
	if _, ok := table.Recognize(config.BorrowMutablyName); ok {
		t.Fatalf("expected original name to no longer be recognized after rename")
	}
	got, ok := table.Recognize("borrowMutReplacement")
	if !ok || got != KindBorrowMutably {
		t.Fatalf("expected renamed name to resolve to KindBorrowMutably, got %v, %v", got, ok)
	}
}

func TestIsHardcodedDistinguishesEscapeHatches(t *testing.T) {
	for _, k := range []Kind{KindBorrowMutably, KindUnborrowMutably, KindBorrowImmutably, KindUnborrowImmutably, KindBlackBox} {
		if !IsHardcoded(k) {
			t.Errorf("expected %v to be hardcoded", k)
		}
	}
	for _, k := range []Kind{KindAssumeNoAliasIn, KindAssumeNoAlias} {
		if IsHardcoded(k) {
			t.Errorf("expected %v to be transparent, not hardcoded", k)
		}
	}
}
