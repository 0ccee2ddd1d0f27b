package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

type erroringRateStore struct{}

func (erroringRateStore) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return false, 0, errors.New("redis down")
}

func loginAttempt(h http.Handler, addr, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/login", strings.NewReader(body))
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestAuthRateLimitKeepsBodyReadable(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)
	h := AuthRateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"username":"tester"`)
		w.WriteHeader(http.StatusOK)
	}))

	rec := loginAttempt(h, "1.2.3.4:5678", `{"username":"tester","password":"secret"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimitIdentityBudget(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 2)
	h := AuthRateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(okHandler))

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, loginAttempt(h, "1.2.3.4:5678", `{"username":"blocked","password":"secret"}`).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := loginAttempt(h, "9.9.9.9:1", `{"username":"blocked"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeRateLimit))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestAuthRateLimitAddressBudget(t *testing.T) {
	policy := NewAuthRateLimitPolicy("register", time.Minute, 1, 0)
	h := AuthRateLimit(policy, newFakeRateStore(), nil)(http.HandlerFunc(okHandler))

	body := `{"username":"foo","password":"secretpass"}`
	assert.Equal(t, http.StatusOK, loginAttempt(h, "5.6.7.8:1234", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, loginAttempt(h, "5.6.7.8:4321", body).Code)
	assert.Equal(t, http.StatusOK, loginAttempt(h, "5.6.7.9:1234", body).Code)
}

func TestAuthRateLimitFoldsUsernameCase(t *testing.T) {
	store := newFakeRateStore()
	policy := NewAuthRateLimitPolicy("Login", time.Minute, 0, 1)
	h := AuthRateLimit(policy, store, nil)(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, loginAttempt(h, "1.1.1.1:1", `{"username":"Alice"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, loginAttempt(h, "1.1.1.1:1", `{"username":" alice "}`).Code)
	assert.Equal(t, int64(2), store.counts["identity:login:"+hashValue("alice")])
}

func TestAuthRateLimitStoreErrorIsDependencyFailure(t *testing.T) {
	called := false
	h := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 1, 0), erroringRateStore{}, nil)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := loginAttempt(h, "1.1.1.1:1", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, called)
}

func TestAuthRateLimitPassesThroughWhenDisabled(t *testing.T) {
	for name, h := range map[string]http.Handler{
		"zero window": AuthRateLimit(NewAuthRateLimitPolicy("login", 0, 1, 1), erroringRateStore{}, nil)(http.HandlerFunc(okHandler)),
		"nil store":   AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 1, 1), nil, nil)(http.HandlerFunc(okHandler)),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusOK, loginAttempt(h, "1.1.1.1:1", `{}`).Code)
		})
	}
}

func TestClientIPOrder(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9000"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.5 , 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(req))
}
