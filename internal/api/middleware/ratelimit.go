package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/tasksync-api/internal/api/shared"
	"github.com/phrazzld/tasksync-api/internal/config"
	"github.com/phrazzld/tasksync-api/internal/redact"
	redis "github.com/redis/go-redis/v9"
)

// WindowCounter is the subset of the Redis client used by RateLimiter.
// *redis.Client implements it.
type WindowCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RateLimiter is a fixed-window per-client limiter backed by Redis
// INCR/EXPIRE. It fails open: with no counter, or when Redis errors, every
// request is allowed. A window key never outlives a failed EXPIRE, so a
// client is not blocked past its window.
type RateLimiter struct {
	counter     WindowCounter
	maxRequests int64
	window      time.Duration
	metrics     *Metrics
	logger      *slog.Logger
}

// NewRateLimiter creates a limiter. counter may be nil to disable limiting;
// metrics may be nil.
func NewRateLimiter(
	counter WindowCounter,
	maxRequests int,
	window time.Duration,
	metrics *Metrics,
	logger *slog.Logger,
) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		counter:     counter,
		maxRequests: int64(maxRequests),
		window:      window,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "rate_limiter")),
	}
}

// NewRedisClient connects to the Redis server named by cfg. It returns nil
// when rate limiting is disabled or the server does not answer a ping, so
// the limiter runs open.
func NewRedisClient(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) *redis.Client {
	if !cfg.Enabled() {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting disabled",
			slog.String("error", redact.Error(err)))
		_ = client.Close()
		return nil
	}
	return client
}

// Limit is the middleware. Keys have the form rl:<window_seconds>:<client_ip>.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.counter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := "rl:" + strconv.FormatInt(int64(l.window.Seconds()), 10) + ":" + clientIP(r)
		ctx := r.Context()

		count, err := l.counter.Incr(ctx, key).Result()
		if err != nil {
			l.logger.Warn("rate limiter counter failed, allowing request",
				slog.String("error", redact.Error(err)))
			w.Header().Set("X-RateLimit-Error", "redis-error")
			next.ServeHTTP(w, r)
			return
		}

		// The first hit opens the window
		if count == 1 {
			if err := l.counter.Expire(ctx, key, l.window).Err(); err != nil {
				l.logger.Warn("failed to set rate limit window expiry, allowing request",
					slog.String("error", redact.Error(err)))
				// Without a TTL the key would block this client forever
				if delErr := l.counter.Del(ctx, key).Err(); delErr != nil {
					l.logger.Error("failed to drop rate limit key without expiry",
						slog.String("error", redact.Error(delErr)))
				}
				w.Header().Set("X-RateLimit-Error", "redis-error")
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.maxRequests, 10))
		if count > l.maxRequests {
			if l.metrics != nil {
				l.metrics.rlBlocked.WithLabelValues(r.Method).Inc()
			}
			w.Header().Set("Retry-After", strconv.FormatInt(int64(l.window.Seconds()), 10))
			shared.RespondWithError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if l.metrics != nil {
			l.metrics.rlAllowed.WithLabelValues(r.Method).Inc()
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP uses RemoteAddr, which chi's RealIP middleware has already
// rewritten from X-Forwarded-For or X-Real-IP when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
