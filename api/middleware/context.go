package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/google/uuid"
)

type contextKey string

const ctxSession contextKey = "session"

// WithSession injects the session record into the context.
func WithSession(ctx context.Context, rec *session.Record) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, rec)
}

// SessionFromContext returns the record attached by the session middleware.
func SessionFromContext(ctx context.Context) *session.Record {
	if ctx == nil {
		return nil
	}
	if rec, ok := ctx.Value(ctxSession).(*session.Record); ok {
		return rec
	}
	return nil
}

func SessionIDFromContext(ctx context.Context) string {
	if rec := SessionFromContext(ctx); rec != nil {
		return rec.ID
	}
	return ""
}

// AccountIDFromContext returns the bound account or uuid.Nil for anonymous sessions.
func AccountIDFromContext(ctx context.Context) uuid.UUID {
	if rec := SessionFromContext(ctx); rec.Authenticated() {
		return *rec.AccountID
	}
	return uuid.Nil
}
