// Package config loads the server configuration from defaults, an optional
// YAML file, a .env file and the process environment, in increasing priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	StoreDriver string `mapstructure:"store_driver"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	JWTSecret   string `mapstructure:"jwt_secret"`

	RedisURL          string        `mapstructure:"redis_url"`
	DirectoryCacheTTL time.Duration `mapstructure:"directory_cache_ttl"`

	WSIdleTimeout   time.Duration `mapstructure:"ws_idle_timeout"`
	WSWriteTimeout  time.Duration `mapstructure:"ws_write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	LogLevel    string `mapstructure:"log_level"`
	Environment string `mapstructure:"environment"`
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// NewViper returns a viper instance with every key defaulted and bound to its
// upper-cased environment variable.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("port", "3001")
	v.SetDefault("database_url", "")
	v.SetDefault("store_driver", DriverPostgres)
	v.SetDefault("auto_migrate", false)
	v.SetDefault("jwt_secret", "secret")
	v.SetDefault("redis_url", "")
	v.SetDefault("directory_cache_ttl", 5*time.Minute)
	v.SetDefault("ws_idle_timeout", 35*time.Second)
	v.SetDefault("ws_write_timeout", 10*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "development")

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (when present) and configFile (when set) into v and returns
// the validated configuration.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// Ignore error if .env file doesn't exist (e.g. in production)
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURLFromEnv()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("config: unknown store_driver %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret is required")
	}
	if c.WSIdleTimeout <= 0 || c.WSWriteTimeout <= 0 {
		return fmt.Errorf("config: websocket timeouts must be positive")
	}
	return nil
}

// postgresURLFromEnv assembles a DSN from the individual POSTGRES_* variables.
func postgresURLFromEnv() string {
	return "postgres://" + getEnv("POSTGRES_USER", "postgres") + ":" +
		getEnv("POSTGRES_PASSWORD", "postgres") + "@" +
		getEnv("POSTGRES_HOST", "localhost") + ":" +
		getEnv("POSTGRES_PORT", "5432") + "/" +
		getEnv("POSTGRES_DB", "chatdb") + "?sslmode=disable"
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
