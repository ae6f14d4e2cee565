package invoice

import "context"

type idempotencyKey struct{}

// WithIdempotencyKey marks a create call as safe to retry; the key is sent to
// the provider so repeated attempts cannot produce duplicate invoices.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(idempotencyKey{}).(string)
	return v, ok && v != ""
}
