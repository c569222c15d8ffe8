package trace

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chorddht/internal/ring"
)

type traceKey struct{}

// GenerateTraceID builds a globally unique trace id in the form
// <nodeID>-<uuid>, so a log line can be correlated back to both the
// originating node and the specific lookup chain.
func GenerateTraceID(nodeID string) string {
	return fmt.Sprintf("%s-%s", nodeID, uuid.NewString())
}

// AttachTraceID generates a fresh trace id from nodeID and stores it in ctx.
func AttachTraceID(ctx context.Context, nodeID ring.ID) (context.Context, string) {
	traceID := GenerateTraceID(nodeID.ToHexString(false))
	return context.WithValue(ctx, traceKey{}, traceID), traceID
}

// GetTraceID reads the trace id out of ctx, or "" if none is attached.
func GetTraceID(ctx context.Context) string {
	if v := ctx.Value(traceKey{}); v != nil {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return ""
}
