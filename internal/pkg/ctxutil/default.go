package ctxutil

import "context"

// Default substitutes context.Background for a nil ctx so callers that
// forward an optional context never panic.
func Default(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
