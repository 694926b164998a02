package auth

import "context"

type callerKey struct{}

// ContextWithCaller records the authenticated calling service.
func ContextWithCaller(ctx context.Context, service string) context.Context {
	return context.WithValue(ctx, callerKey{}, service)
}

func CallerFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(callerKey{}).(string)
	return s, ok && s != ""
}
