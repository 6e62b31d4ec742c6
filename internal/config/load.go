package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "TASKSYNC"

// configFileEnv names an explicit config file to read instead of ./config.yaml.
const configFileEnv = "TASKSYNC_CONFIG_FILE"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// A .env file in the working directory is loaded first if present; variables
// already set in the process environment are not overridden by it.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if file := os.Getenv(configFileEnv); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound explicitly
	for _, key := range []string{"database.url", "ratelimit.redis_addr", "ratelimit.redis_password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags on cfg.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.RegisterValidation("pgdsn", isPostgresDSN); err != nil {
		return fmt.Errorf("failed to register validator: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// isPostgresDSN reports whether the field parses as a pgx connection string.
func isPostgresDSN(fl validator.FieldLevel) bool {
	_, err := pgx.ParseConfig(fl.Field().String())
	return err == nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.version", "1.0")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.acquire_timeout", "5s")

	v.SetDefault("ratelimit.redis_db", 0)
	v.SetDefault("ratelimit.requests", 120)
	v.SetDefault("ratelimit.window", "1m")
}
