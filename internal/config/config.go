package config

import "time"

// Config holds all application configuration.
// It is built once at process start and treated as read-only afterwards.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	Version         string        `mapstructure:"version"          validate:"required"`
	CORSOrigin      string        `mapstructure:"cors_origin"      validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains the store connection parameters handed to the
// persistence gateway.
type DatabaseConfig struct {
	// URL is any connection string pgx accepts: a postgres:// URL or a
	// keyword/value DSN such as "host=db user=app dbname=tasks".
	URL             string        `mapstructure:"url"               validate:"required,pgdsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	// AcquireTimeout bounds how long a request may wait for a connection
	// before failing.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" validate:"gt=0"`
}

// RateLimitConfig configures the Redis-backed request limiter.
// An empty RedisAddr disables rate limiting.
type RateLimitConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"     validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"       validate:"gte=0"`
	Requests      int           `mapstructure:"requests"       validate:"gte=1"`
	Window        time.Duration `mapstructure:"window"         validate:"gt=0"`
}

// Enabled reports whether a Redis address was configured.
func (c RateLimitConfig) Enabled() bool {
	return c.RedisAddr != ""
}
