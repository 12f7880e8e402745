package wire

import (
	"testing"

	"github.com/Radbuglet/autoken-go/internal/diagnostic"
	"github.com/Radbuglet/autoken-go/internal/ir"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	report := &diagnostic.Report{Diagnostics: []*diagnostic.Diagnostic{
		{
			Kind:      diagnostic.D1TooManyMutableBorrows,
			Severity:  diagnostic.SeverityError,
			Component: ir.Component("Widget"),
			Location:  ir.Location{File: "main.go", Line: 12, Col: 4},
			Message:   "call requires at most 0 outstanding mutable borrows of Widget, but 1 are held",
		},
	}}

	data, err := Marshal(report)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	rows, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.Kind != "D1" || got.Component != "Widget" || got.Line != 12 {
		t.Fatalf("unexpected round-tripped row: %+v", got)
	}
}
