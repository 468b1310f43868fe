package reqctx

import "context"

type ctxKey string

const (
	keyRID           ctxKey = "rid"
	keyNegotiationID ctxKey = "negotiation_id"
)

// WithRID stores the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns correlation id if present.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	return v
}

// WithNegotiationID stores the negotiation being worked on for log lines.
func WithNegotiationID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, keyNegotiationID, id)
}

// NegotiationID returns negotiation id if present.
func NegotiationID(ctx context.Context) uint64 {
	v, _ := ctx.Value(keyNegotiationID).(uint64)
	return v
}
