package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> middlewares).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyCorrelationId = ContextKey("CorrelationId")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func SetCorrelationId(ctx context.Context, correlationId string) context.Context {
	return Set(ctx, ContextKeyCorrelationId, correlationId)
}

// CorrelationId returns the request correlation id or "".
func CorrelationId(ctx context.Context) string {
	v, _ := GetString(ctx, ContextKeyCorrelationId)
	return v
}
