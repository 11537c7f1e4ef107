package pipeline

import (
	"context"

	"github.com/google/uuid"
)

// reqIDKey is the context key carrying the per-request correlation ID,
// modeled on the teacher's gatewayReqIDKey/gatewayReqIDField pattern and
// generalized to a uuid rather than a process-local sequence number,
// since this ID also gets threaded into beacon events and decision RPCs
// that leave the process.
type reqIDKey struct{}

func withReqID(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, reqIDKey{}, id), id
}

func reqIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(reqIDKey{}).(string); ok {
		return v
	}
	return ""
}

// reqIDField renders the correlation ID as a trailing log field, empty
// when absent so a log line without a tracked request still reads clean.
func reqIDField(ctx context.Context) string {
	if id := reqIDFromContext(ctx); id != "" {
		return " req=" + id
	}
	return ""
}
