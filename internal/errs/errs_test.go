package errs

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"

	"github.com/Radbuglet/autoken-go/internal/ir"
)

func TestClassifyDriverDetectedFailureIsFailedPrecondition(t *testing.T) {
	err := &ir.FatalError{Reason: "no entry function found"}
	st := Classify(err)
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", st.Code())
	}
	if ExitCategory(st) != "configuration" {
		t.Fatalf("expected configuration category")
	}
}

func TestClassifyWrappedFrontEndFailureIsUnavailable(t *testing.T) {
	err := &ir.FatalError{Reason: "load packages", Err: errors.New("boom")}
	st := Classify(err)
	if st.Code() != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", st.Code())
	}
}

func TestMarshalStatusProducesBytes(t *testing.T) {
	st := Classify(&ir.FatalError{Reason: "no entry function found"})
	data, err := MarshalStatus(st)
	if err != nil {
		t.Fatalf("MarshalStatus: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty marshaled status")
	}
}
