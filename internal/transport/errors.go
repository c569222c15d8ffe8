package transport

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error taxonomy sentinels. Every error the routing/stabilization/storage
// engines hand to the transport layer is one of these; every error the
// transport layer hands back up is normalized to one of these too, so
// upper layers never branch on gRPC-specific types.
var (
	// ErrTransport covers peer-unreachable, timeout, and connection-reset
	// conditions. Recoverable: the routing layer invalidates the
	// offending finger/successor and retries an alternate path.
	ErrTransport = errors.New("transport: peer unreachable")
	// ErrRouting means a lookup exhausted its retry budget.
	ErrRouting = errors.New("routing: lookup failed after retries")
	// ErrPermissionDenied means a PoW token failed validation.
	ErrPermissionDenied = errors.New("permission denied: invalid proof-of-work token")
	// ErrConflict means a joining address collided with an existing ring
	// identifier. Fatal to the joiner.
	ErrConflict = errors.New("conflict: address collides with existing ring id")
	// ErrInvariant means an internal consistency check failed.
	ErrInvariant = errors.New("invariant violated")
)

// ToStatus maps an internal taxonomy error to the gRPC status returned on
// the wire. Unrecognized errors map to codes.Unknown.
func ToStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrRouting):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrInvariant):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// FromStatus normalizes a gRPC-call error (as returned by Invoke/RecvMsg)
// into the internal taxonomy: transport-level failures become
// ErrTransport, context errors are passed through, and known status codes
// map back to their sentinel.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return ErrTransport
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Aborted:
		return ErrTransport
	case codes.PermissionDenied:
		return ErrPermissionDenied
	case codes.AlreadyExists:
		return ErrConflict
	case codes.Internal:
		return ErrInvariant
	default:
		return ErrTransport
	}
}

// CheckContext reports a transport-shaped error if ctx is already done,
// so handlers can bail before doing any work.
func CheckContext(ctx context.Context) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled by caller")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request deadline exceeded")
	default:
		return nil
	}
}
