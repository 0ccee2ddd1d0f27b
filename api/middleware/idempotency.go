package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	// CheckoutIdempotencyTTL is how long a placed order can be replayed.
	CheckoutIdempotencyTTL = 7 * 24 * time.Hour

	maxIdempotencyKeyLen = 255
)

type idempotencyRecord struct {
	Done        bool   `json:"done"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes the wrapped route safe to retry. The first request with a
// given Idempotency-Key reserves it; a 2xx outcome is stored and replayed to
// later requests from the same session, any other outcome frees the key.
// A nil store disables the guard.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required").
					WithDetails(map[string]any{"max_length": maxIdempotencyKeyLen}))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
						WithDetails(map[string]any{"max_bytes": tooLarge.Limit}))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			call := idempotentCall{
				store:       store,
				key:         store.IdempotencyKey(SessionIDFromContext(ctx), clientKey),
				fingerprint: fingerprint(r.Method, r.URL.Path, body),
				ttl:         ttl,
			}

			reserved, err := call.reserve(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				call.replay(ctx, logg, w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if !capture.succeeded() {
				if err := call.release(ctx); err != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			if err := call.commit(ctx, capture); err != nil {
				logg.Error(ctx, "store idempotent response", err)
			}
		})
	}
}

type idempotentCall struct {
	store       pkgredis.IdempotencyStore
	key         string
	fingerprint string
	ttl         time.Duration
}

func (c idempotentCall) reserve(ctx context.Context) (bool, error) {
	pending, err := json.Marshal(idempotencyRecord{Fingerprint: c.fingerprint})
	if err != nil {
		return false, err
	}
	return c.store.SetNX(ctx, c.key, string(pending), c.ttl)
}

func (c idempotentCall) commit(ctx context.Context, capture *responseCapture) error {
	done, err := json.Marshal(idempotencyRecord{
		Done:        true,
		Fingerprint: c.fingerprint,
		Status:      capture.statusCode(),
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.key, string(done), c.ttl)
}

func (c idempotentCall) release(ctx context.Context) error {
	return c.store.Del(ctx, c.key)
}

func (c idempotentCall) replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter) {
	raw, err := c.store.Get(ctx, c.key)
	switch {
	case errors.Is(err, redis.Nil):
		// released between our SETNX and GET: the first attempt failed
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "previous attempt with this Idempotency-Key failed, retry"))
		return
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.Fingerprint != c.fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key was already used for a different request"))
		return
	}
	if !record.Done {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key is still in progress"))
		return
	}

	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseCapture) succeeded() bool {
	s := r.statusCode()
	return s >= http.StatusOK && s < http.StatusMultipleChoices
}
