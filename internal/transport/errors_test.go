package transport

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStatusRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"permission denied", ErrPermissionDenied, ErrPermissionDenied},
		{"conflict", ErrConflict, ErrConflict},
		{"invariant", ErrInvariant, ErrInvariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStatus(ToStatus(tt.in))
			if !errors.Is(got, tt.want) {
				t.Errorf("FromStatus(ToStatus(%v)) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoutingMapsToTransportOnTheWire(t *testing.T) {
	// A routing failure surfaces as Unavailable, which a caller's
	// FromStatus reads as a transport condition worth retrying elsewhere.
	got := FromStatus(ToStatus(ErrRouting))
	if !errors.Is(got, ErrTransport) {
		t.Errorf("round-tripped ErrRouting = %v, want ErrTransport", got)
	}
}

func TestFromStatusNormalizesUnavailable(t *testing.T) {
	err := status.Error(codes.Unavailable, "connection refused")
	if got := FromStatus(err); !errors.Is(got, ErrTransport) {
		t.Errorf("FromStatus(Unavailable) = %v, want ErrTransport", got)
	}
}

func TestFromStatusPassesContextErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := FromStatus(ctx.Err()); !errors.Is(got, context.Canceled) {
		t.Errorf("FromStatus(context.Canceled) = %v, want context.Canceled", got)
	}
}

func TestFromStatusNil(t *testing.T) {
	if got := FromStatus(nil); got != nil {
		t.Errorf("FromStatus(nil) = %v, want nil", got)
	}
}
