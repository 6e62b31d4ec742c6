package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/phrazzld/tasksync-api/internal/config"
	"github.com/phrazzld/tasksync-api/internal/platform/logger"
	"github.com/phrazzld/tasksync-api/internal/redact"
	"github.com/phrazzld/tasksync-api/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// GatewayMetrics records connection lease outcomes.
type GatewayMetrics struct {
	acquireFailures prometheus.Counter
	leaseDuration   prometheus.Histogram
}

// NewGatewayMetrics creates the gateway collectors and registers them with reg.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		acquireFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasksync_db_acquire_failures_total",
			Help: "Number of failed attempts to lease a database connection.",
		}),
		leaseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tasksync_db_lease_duration_seconds",
			Help:    "Time a request held its leased database connection.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.acquireFailures, m.leaseDuration)
	return m
}

// Gateway leases dedicated connections from a *sql.DB pool.
// Every lease is bounded by the configured acquire timeout and must be
// released exactly once.
type Gateway struct {
	db             *sql.DB
	acquireTimeout time.Duration
	logger         *slog.Logger
	metrics        *GatewayMetrics
}

// Ensure Gateway implements store.Gateway interface
var _ store.Gateway = (*Gateway)(nil)

// Open creates the connection pool described by cfg and wraps it in a Gateway.
// No connection is made until the first lease.
func Open(cfg config.DatabaseConfig, logger *slog.Logger, metrics *GatewayMetrics) (*Gateway, error) {
	db, err := sql.Open(DriverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %s", redact.Error(err))
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return NewGateway(db, cfg.AcquireTimeout, logger, metrics), nil
}

// NewGateway wraps an existing pool. metrics may be nil.
func NewGateway(
	db *sql.DB,
	acquireTimeout time.Duration,
	logger *slog.Logger,
	metrics *GatewayMetrics,
) *Gateway {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		db:             db,
		acquireTimeout: acquireTimeout,
		logger:         logger.With(slog.String("component", "db_gateway")),
		metrics:        metrics,
	}
}

// Lease is one connection checked out of the pool.
type Lease struct {
	conn     *sql.Conn
	gateway  *Gateway
	acquired time.Time
	once     sync.Once
}

// Conn returns the leased connection.
func (l *Lease) Conn() store.Conn {
	return l.conn
}

// Release returns the connection to the pool. Calls after the first are no-ops.
func (l *Lease) Release() {
	l.once.Do(func() {
		if err := l.conn.Close(); err != nil {
			l.gateway.logger.Warn("failed to release connection",
				slog.String("error", redact.Error(err)))
		}
		if l.gateway.metrics != nil {
			l.gateway.metrics.leaseDuration.Observe(time.Since(l.acquired).Seconds())
		}
	})
}

// Acquire leases a connection and verifies it with a ping. It fails with an
// error wrapping store.ErrConnection when the store is unreachable or the
// acquire timeout elapses; it never retries.
func (g *Gateway) Acquire(ctx context.Context) (*Lease, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	actx := ctx
	if g.acquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, g.acquireTimeout)
		defer cancel()
	}

	conn, err := g.db.Conn(actx)
	if err != nil {
		return nil, g.acquireFailed(log, err)
	}

	if err := conn.PingContext(actx); err != nil {
		_ = conn.Close()
		return nil, g.acquireFailed(log, err)
	}

	return &Lease{conn: conn, gateway: g, acquired: time.Now()}, nil
}

func (g *Gateway) acquireFailed(log *slog.Logger, err error) error {
	if g.metrics != nil {
		g.metrics.acquireFailures.Inc()
	}
	log.Error("failed to acquire database connection",
		slog.String("error", redact.Error(err)))
	return fmt.Errorf("%w: %s", store.ErrConnection, redact.Error(err))
}

// WithConn implements store.Gateway.WithConn.
// The lease is released in a deferred call, so fn may return an error or
// panic without leaking the connection.
func (g *Gateway) WithConn(
	ctx context.Context,
	fn func(ctx context.Context, conn store.Conn) error,
) error {
	lease, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	return fn(ctx, lease.Conn())
}

// Ping implements store.Gateway.Ping.
func (g *Gateway) Ping(ctx context.Context) error {
	lease, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	lease.Release()
	return nil
}

// DB returns the underlying pool.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// Close closes the pool. Outstanding leases become unusable.
func (g *Gateway) Close() error {
	return g.db.Close()
}
