package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/tasksync-api/internal/api/shared"
	"github.com/phrazzld/tasksync-api/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter keeps fixed-window counts in memory.
type fakeCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	err     error

	// expireErr, when set, fails every Expire call.
	expireErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "incr", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx, "expire", key, expiration)
	if f.expireErr != nil {
		cmd.SetErr(f.expireErr)
		return cmd
	}
	f.expires[key] = expiration
	cmd.SetVal(true)
	return cmd
}

func (f *fakeCounter) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "del", keys)
	var n int64
	for _, key := range keys {
		if _, ok := f.counts[key]; ok {
			delete(f.counts, key)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestTraceMiddleware(t *testing.T) {
	var seen string
	h := NewTraceMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, shared.ValidTraceID(seen))
		assert.Equal(t, seen, w.Header().Get(shared.TraceIDHeader))
	})

	t.Run("adopts a valid client id", func(t *testing.T) {
		id := shared.NewTraceID()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(shared.TraceIDHeader, id)
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, id, seen)
	})

	t.Run("replaces an invalid client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(shared.TraceIDHeader, "<script>")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, "<script>", seen)
		assert.True(t, shared.ValidTraceID(seen))
	})
}

func TestCORS(t *testing.T) {
	t.Run("preflight from any origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/tasks/t1", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		w := httptest.NewRecorder()
		CORS("*")(okHandler).ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.MethodPut, w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("bare OPTIONS never reaches the handler", func(t *testing.T) {
		called := false
		h := CORS("*")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/tasks", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, called)
	})

	t.Run("listed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Origin", "https://web.example.com")

		w := httptest.NewRecorder()
		CORS("https://app.example.com, https://web.example.com")(okHandler).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://web.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Values("Vary"), "Origin")
	})

	t.Run("unlisted origin gets no grant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		w := httptest.NewRecorder()
		CORS("https://app.example.com")(okHandler).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetrics_Instrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Put("/api/tasks/{task_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/tasks/t1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/tasks/t2", nil))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "tasksync_http_requests_total" {
			continue
		}
		require.Len(t, mf.GetMetric(), 1, "path parameters must not create new series")
		metric := mf.GetMetric()[0]
		assert.Equal(t, float64(2), metric.GetCounter().GetValue())
		labels := map[string]string{}
		for _, lp := range metric.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		assert.Equal(t, "/api/tasks/{task_id}", labels["route"])
		assert.Equal(t, "404", labels["status"])
		found = true
	}
	assert.True(t, found)
}

func TestRateLimiter(t *testing.T) {
	t.Run("blocks after the window budget", func(t *testing.T) {
		counter := newFakeCounter()
		limiter := NewRateLimiter(counter, 2, time.Minute, NewMetrics(prometheus.NewRegistry()), nil)
		h := limiter.Limit(okHandler)

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks?user_id=u1", nil)
			req.RemoteAddr = "192.0.2.10:51234"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
		assert.Equal(t, time.Minute, counter.expires["rl:60:192.0.2.10"])
	})

	t.Run("clients are counted separately", func(t *testing.T) {
		h := NewRateLimiter(newFakeCounter(), 1, time.Minute, nil, nil).Limit(okHandler)
		for _, addr := range []string{"192.0.2.1:1000", "192.0.2.2:1000"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("fails open on counter error", func(t *testing.T) {
		counter := newFakeCounter()
		counter.err = errors.New("dial tcp 10.0.0.9:6379: connection refused")
		h := NewRateLimiter(counter, 1, time.Minute, nil, nil).Limit(okHandler)

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "redis-error", w.Header().Get("X-RateLimit-Error"))
		}
	})

	t.Run("failed expiry never leaves a permanent key", func(t *testing.T) {
		counter := newFakeCounter()
		counter.expireErr = errors.New("READONLY You can't write against a read only replica")
		h := NewRateLimiter(counter, 2, time.Minute, nil, nil).Limit(okHandler)

		for i := 0; i < 4; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks?user_id=u1", nil)
			req.RemoteAddr = "192.0.2.1:40000"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
			assert.Equal(t, "redis-error", w.Header().Get("X-RateLimit-Error"))
		}

		counter.mu.Lock()
		defer counter.mu.Unlock()
		assert.Empty(t, counter.counts, "keys without a TTL must be dropped")
		assert.Empty(t, counter.expires)
	})

	t.Run("disabled without a counter", func(t *testing.T) {
		h := NewRateLimiter(nil, 1, time.Minute, nil, nil).Limit(okHandler)
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}

func TestNewRedisClient_Disabled(t *testing.T) {
	assert.Nil(t, NewRedisClient(context.Background(), config.RateLimitConfig{}, nil))
}
