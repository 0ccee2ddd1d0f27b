package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func checkoutRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(WithSession(req.Context(), &session.Record{ID: "sess-1"}))
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func placedOrder(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"order-1"}}`))
	})
}

func TestIdempotencyNilStorePassesThrough(t *testing.T) {
	var calls int
	h := Idempotency(nil, time.Hour, nil)(placedOrder(&calls))

	rec := serve(h, checkoutRequest("", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsMissingOrOversizedKey(t *testing.T) {
	for name, key := range map[string]string{
		"missing":   "",
		"blank":     "   ",
		"oversized": strings.Repeat("k", maxIdempotencyKeyLen+1),
	} {
		t.Run(name, func(t *testing.T) {
			var calls int
			h := Idempotency(newFakeStore(), time.Hour, nil)(placedOrder(&calls))

			rec := serve(h, checkoutRequest(key, `{}`))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeValidation))
			assert.Zero(t, calls)
		})
	}
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	var calls int
	store := newFakeStore()
	h := Idempotency(store, time.Hour, nil)(placedOrder(&calls))

	body := `{"note":"` + strings.Repeat("a", validators.MaxBodyBytes) + `"}`
	rec := serve(h, checkoutRequest("big-1", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body too large")
	assert.Zero(t, calls)
	assert.Empty(t, store.data, "an oversized request must not reserve its key")
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	h := Idempotency(store, CheckoutIdempotencyTTL, nil)(placedOrder(&calls))

	first := serve(h, checkoutRequest("abc", `{"note":"x"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	again := serve(h, checkoutRequest("abc", `{"note":"x"}`))
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(replayedHeader))
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Equal(t, 1, calls)

	assert.Equal(t, CheckoutIdempotencyTTL, store.ttls[store.IdempotencyKey("sess-1", "abc")])
}

func TestIdempotencyRejectsKeyReuseForDifferentRequest(t *testing.T) {
	var calls int
	h := Idempotency(newFakeStore(), time.Hour, nil)(placedOrder(&calls))
	require.Equal(t, http.StatusCreated, serve(h, checkoutRequest("abc", `{"note":"x"}`)).Code)

	t.Run("different body", func(t *testing.T) {
		rec := serve(h, checkoutRequest("abc", `{"note":"y"}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeIdempotency))
	})
	t.Run("different path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"note":"x"}`))
		req = req.WithContext(WithSession(req.Context(), &session.Record{ID: "sess-1"}))
		req.Header.Set(idempotencyKeyHeader, "abc")
		assert.Equal(t, http.StatusConflict, serve(h, req).Code)
	})
	assert.Equal(t, 1, calls)
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	store := newFakeStore()
	var calls int
	status := http.StatusUnprocessableEntity
	h := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, serve(h, checkoutRequest("retry-me", `{}`)).Code)
	assert.Empty(t, store.data)

	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, serve(h, checkoutRequest("retry-me", `{}`)).Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var h http.Handler
	h = Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = serve(h, checkoutRequest("busy", `{}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	assert.Equal(t, http.StatusCreated, serve(h, checkoutRequest("busy", `{}`)).Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Contains(t, inner.Body.String(), "still in progress")
}

func TestIdempotencyKeysAreScopedBySession(t *testing.T) {
	var calls int
	h := Idempotency(newFakeStore(), time.Hour, nil)(placedOrder(&calls))

	for _, id := range []string{"session-a", "session-b"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
		req = req.WithContext(WithSession(req.Context(), &session.Record{ID: id}))
		req.Header.Set(idempotencyKeyHeader, "shared")
		assert.Equal(t, http.StatusCreated, serve(h, req).Code)
	}
	assert.Equal(t, 2, calls)
}
