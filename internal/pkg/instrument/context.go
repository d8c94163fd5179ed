package instrument

import "context"

type correlationKey struct{}

// invalidCorrelationID is returned when the context carries no id.
const invalidCorrelationID = "[invalid_chain_id]"

// SetCorrelationID stores the correlation id in ctx.
func SetCorrelationID(ctx context.Context, cID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, cID)
}

// GetCorrelationID returns the correlation id of ctx, or "[invalid_chain_id]"
// when none was set.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return invalidCorrelationID
	}

	cID, ok := ctx.Value(correlationKey{}).(string)
	if !ok || cID == "" {
		return invalidCorrelationID
	}

	return cID
}

// HasCorrelationID reports whether ctx carries a usable correlation id.
func HasCorrelationID(ctx context.Context) bool {
	return GetCorrelationID(ctx) != invalidCorrelationID
}
