package hdrjwt

import "context"

type assertionKey struct{}

// BindAssertion stores the issued token inside the context for downstream handlers.
func BindAssertion(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, assertionKey{}, token)
}

// AssertionFromContext retrieves a token previously stored with BindAssertion.
func AssertionFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value := ctx.Value(assertionKey{})
	if value == nil {
		return "", false
	}
	token, ok := value.(string)
	return token, ok && token != ""
}
