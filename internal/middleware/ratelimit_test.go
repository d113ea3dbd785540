package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/nodebird/internal/model"
	"github.com/hitoshi/nodebird/internal/token"
)

// --- MemoryStore ---

func TestMemoryStore_CountsWithinWindowAndResets(t *testing.T) {
	store := NewMemoryStore(0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	count, resetIn, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, resetIn)

	now = now.Add(20 * time.Second)
	count, resetIn, err = store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 40*time.Second, resetIn)

	now = now.Add(40 * time.Second)
	count, _, err = store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "a new window starts once the previous one ends")
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	store.Incr(ctx, "a", time.Minute)
	store.Incr(ctx, "a", time.Minute)
	count, _, _ := store.Incr(ctx, "b", time.Minute)

	assert.Equal(t, int64(1), count)
}

func TestMemoryStore_ConcurrentIncrementsAreNotLost(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Incr(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()

	count, _, _ := store.Incr(ctx, "k", time.Minute)
	assert.Equal(t, int64(101), count)
}

func TestMemoryStore_SweepRemovesEndedWindows(t *testing.T) {
	store := NewMemoryStore(0)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Incr(ctx, "old", time.Second)
	store.Incr(ctx, "new", time.Hour)
	require.Equal(t, 2, store.Len())

	now = now.Add(2 * time.Second)
	store.sweep()

	assert.Equal(t, 1, store.Len())
}

// --- NewFixedWindowMiddleware ---

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func limitedHandler(store WindowStore, limit int64, rec RateLimitRecorder) http.Handler {
	return NewFixedWindowMiddleware(store, FixedWindowConfig{
		Limit: limit, Window: time.Minute, Route: "/v2/test",
	}, rec)(okHandler(nil))
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v2/test", nil)
	req.RemoteAddr = ip + ":12345"
	return req
}

func TestFixedWindow_AllowsUpToLimitThenReturns429(t *testing.T) {
	rec := &fakeRecorder{}
	handler := limitedHandler(NewMemoryStore(0), 3, rec)

	for i := 1; i <= 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.1"))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, strconv.Itoa(3-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, 429, body.Code)
	assert.Equal(t, model.NewRateLimitedError().Message, body.Message)
	assert.Equal(t, []string{"/v2/test"}, rec.rateLimited)

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, retryAfter >= 1 && retryAfter <= 60, "Retry-After = %d", retryAfter)
}

func TestFixedWindow_IsolatesCallersByIP(t *testing.T) {
	handler := limitedHandler(NewMemoryStore(0), 1, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.2"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFixedWindow_KeysByTokenIdentityWhenPresent(t *testing.T) {
	handler := limitedHandler(NewMemoryStore(0), 1, nil)

	withUser := func(userID int64) *http.Request {
		req := requestFrom("10.0.0.1")
		claims := &token.Claims{UserID: userID, Nick: "n"}
		return req.WithContext(ContextWithClaims(req.Context(), claims))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withUser(1))
	require.Equal(t, http.StatusOK, w.Code)

	// 同じIPでも別ユーザーなら独立して数える
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, withUser(2))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, withUser(1))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestFixedWindow_RoutesAreCountedSeparately(t *testing.T) {
	store := NewMemoryStore(0)
	a := NewFixedWindowMiddleware(store, FixedWindowConfig{Limit: 1, Window: time.Minute, Route: "a"}, nil)(okHandler(nil))
	b := NewFixedWindowMiddleware(store, FixedWindowConfig{Limit: 1, Window: time.Minute, Route: "b"}, nil)(okHandler(nil))

	w := httptest.NewRecorder()
	a.ServeHTTP(w, requestFrom("10.0.0.1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	b.ServeHTTP(w, requestFrom("10.0.0.1"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFixedWindow_StoreFailureAllowsRequest(t *testing.T) {
	handler := limitedHandler(failingStore{}, 1, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1"))

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- RateLimiter（ドメイン登録） ---

func TestDomainRegistrationRateLimit_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		DomainRegRate:   0.001,
		DomainRegBurst:  2,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.DomainRegistrationMiddleware(nil)(okHandler(nil))

	post := func(userID int64) int {
		req := httptest.NewRequest(http.MethodPost, "/domain", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post(1))
	assert.Equal(t, http.StatusOK, post(1))
	assert.Equal(t, http.StatusTooManyRequests, post(1))
	assert.Equal(t, http.StatusOK, post(2), "other users are not affected")
	assert.Equal(t, 2, rl.DomainRegLimiterCount())
}

func TestDomainRegistrationRateLimit_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	w := httptest.NewRecorder()
	rl.DomainRegistrationMiddleware(nil)(okHandler(nil)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/domain", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		DomainRegRate:   1,
		DomainRegBurst:  1,
		CleanupInterval: time.Hour,
	})
	defer rl.Stop()

	rl.getOrCreateDomainRegLimiter(1)
	rl.domainRegMu.Lock()
	rl.domainRegLimiters[1].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.domainRegMu.Unlock()

	rl.cleanup()

	assert.Equal(t, 0, rl.DomainRegLimiterCount())
}

func TestDomainRegConfig(t *testing.T) {
	cfg := DomainRegConfig(10)
	assert.InDelta(t, 10.0/60.0, float64(cfg.DomainRegRate), 1e-9)
	assert.Equal(t, 10, cfg.DomainRegBurst)
	assert.InDelta(t, 6.0, refillInterval(cfg.DomainRegRate).Seconds(), 0.001)
}

func TestDomainRegistrationRateLimit_UsesErrorWriter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		DomainRegRate:   0.001,
		DomainRegBurst:  1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	var statuses []int
	onError := func(w http.ResponseWriter, r *http.Request, apiErr *model.APIError) {
		statuses = append(statuses, apiErr.Status)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(apiErr.Status)
	}
	handler := rl.DomainRegistrationMiddleware(onError)(okHandler(nil))

	// ユーザーIDなし
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/domain", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/domain", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), 1))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}
	assert.Equal(t, http.StatusOK, post().Code)

	w = post()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusTooManyRequests}, statuses)
}
