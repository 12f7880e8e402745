// Package errs maps the analyzer's fatal-error conditions onto a
// structured taxonomy borrowed from gRPC's status/codes packages, used
// purely as a vocabulary (no RPC server or client is involved) so
// cmd/autoken and any embedding host process get a stable, documented set
// of failure categories instead of ad-hoc string sniffing.
package errs

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/Radbuglet/autoken-go/internal/ir"
)

// Classify maps err onto a gRPC status carrying one of the codes below,
// picked by matching against the known fatal-error shapes the driver and
// its front ends can produce. An error of unknown shape becomes
// codes.Unknown.
func Classify(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}

	var fatal *ir.FatalError
	if errors.As(err, &fatal) {
		switch {
		case fatal.Err == nil:
			// A condition the analyzer itself detected (e.g. packages that
			// failed to load cleanly, or an unexpected terminator kind):
			// the caller's configuration or program shape is at fault.
			return status.New(codes.FailedPrecondition, fatal.Reason)
		default:
			// Wraps an I/O or front-end error (package loading, cache I/O,
			// schema compilation): treat as unavailable, since a retry or a
			// fixed environment might succeed where the program didn't
			// change.
			return status.New(codes.Unavailable, fatal.Error())
		}
	}

	return status.New(codes.Unknown, err.Error())
}

// ExitCategory buckets a classified status into the three-way outcome
// cmd/autoken reports on stderr before translating to a process exit code.
func ExitCategory(st *status.Status) string {
	switch st.Code() {
	case codes.OK:
		return "ok"
	case codes.FailedPrecondition, codes.InvalidArgument:
		return "configuration"
	default:
		return "internal"
	}
}

// MarshalStatus serializes st as a wire-format google.rpc.Status message,
// for embedding alongside a wire.Report when a run fails outright.
func MarshalStatus(st *status.Status) ([]byte, error) {
	return proto.Marshal(st.Proto())
}
