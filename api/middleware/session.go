package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SessionTokenHeader carries the signed session token in both directions.
const SessionTokenHeader = "X-Session-Token"

type sessionStore interface {
	Create(ctx context.Context) (*session.Record, error)
	Lookup(ctx context.Context, id string) (*session.Record, error)
}

// Session resolves the caller's session from the token header. Missing,
// invalid or expired tokens start a fresh anonymous session whose token is
// returned in the response header.
func Session(cfg config.SessionConfig, sessions sessionStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			rec, err := resumeSession(ctx, cfg, sessions, r.Header.Get(SessionTokenHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session"))
				return
			}

			if rec == nil {
				rec, err = sessions.Create(ctx)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session"))
					return
				}
				token, err := pkgAuth.MintSessionToken(cfg, time.Now(), rec.ID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token"))
					return
				}
				w.Header().Set(SessionTokenHeader, token)
			}

			ctx = WithSession(ctx, rec)
			ctx = logg.WithSessionID(ctx, rec.ID)
			if rec.Authenticated() {
				ctx = logg.WithAccountID(ctx, rec.AccountID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resumeSession returns nil without error when the token cannot be used.
func resumeSession(ctx context.Context, cfg config.SessionConfig, sessions sessionStore, raw string) (*session.Record, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return nil, nil
	}
	claims, err := pkgAuth.ParseSessionToken(cfg, token)
	if err != nil {
		return nil, nil
	}
	rec, err := sessions.Lookup(ctx, claims.SessionID())
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
