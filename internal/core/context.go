package core

import "context"

type contextKey string

const ctxKeyBatchID contextKey = "batch_id"

// ContextWithBatchID tags ctx with the id of the batch being processed.
func ContextWithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyBatchID, id)
}

// BatchIDFromContext returns the batch id set by ContextWithBatchID.
func BatchIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyBatchID).(string); ok {
		return v
	}
	return ""
}
