package middleware

import (
	"context"

	"github.com/angelmondragon/bazarche-storefront/internal/storefront"
)

type contextKey string

const (
	ctxSessionID  contextKey = "session_id"
	ctxStorefront contextKey = "storefront"
)

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

func StorefrontFromContext(ctx context.Context) *storefront.Storefront {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxStorefront).(*storefront.Storefront); ok {
		return v
	}
	return nil
}

// WithStorefront binds a session's storefront to the request context.
func WithStorefront(ctx context.Context, sessionID string, sf *storefront.Storefront) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSessionID, sessionID)
	return context.WithValue(ctx, ctxStorefront, sf)
}
