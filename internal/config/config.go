// Package config holds the runtime configuration of the service and the
// scoring/safety constants used by the core.
//
// Runtime configuration is read from an optional TOML file and then overridden
// by environment variables. PathFromEnv loads the .env file, so it runs before
// the command line is parsed.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	Mode           string   `toml:"mode"` // gin mode: debug, release, test
	AllowedOrigins []string `toml:"allowedOrigins"`
	SSLRedirect    bool     `toml:"sslRedirect"`
	SSLHost        string   `toml:"sslHost"`
}

type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type AuthConfig struct {
	JWTSecret string        `toml:"jwtSecret"`
	Issuer    string        `toml:"issuer"`
	TokenTTL  time.Duration `toml:"tokenTTL"`
}

type KafkaConfig struct {
	Brokers []string      `toml:"brokers"`
	Topic   string        `toml:"topic"`
	Timeout time.Duration `toml:"timeout"`
}

type LogConfig struct {
	FileName   string `toml:"fileName"`
	MaxSize    int    `toml:"maxSize"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAge     int    `toml:"maxAge"`
	Level      string `toml:"level"`
}

type GatewayConfig struct {
	// OpTimeout bounds each authorization and persistence call made on
	// behalf of a connection.
	OpTimeout      time.Duration `toml:"opTimeout"`
	SendBufferSize int           `toml:"sendBufferSize"`
	MaxMessageSize int64         `toml:"maxMessageSize"`
}

type MatchingConfig struct {
	CandidateLimit int `toml:"candidateLimit"`
	ScoreWorkers   int `toml:"scoreWorkers"`
}

// Config is the full runtime configuration.
type Config struct {
	Storage  string         `toml:"storage"` // "postgres" or "memory"
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Log      LogConfig      `toml:"log"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Matching MatchingConfig `toml:"matching"`
}

// Default returns the configuration used when no file or env var overrides it.
func Default() *Config {
	return &Config{
		Storage: "postgres",
		Server: ServerConfig{
			Addr:           ":8080",
			Mode:           "debug",
			AllowedOrigins: []string{"*"},
		},
		Postgres: PostgresConfig{
			DSN: "host=localhost user=user password=password dbname=roomiesdb port=5432 sslmode=disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Auth: AuthConfig{
			Issuer:   "roomies-service",
			TokenTTL: 72 * time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:   "roomies.events",
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{
			FileName:   "logs/app.log",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Level:      "info",
		},
		Gateway: GatewayConfig{
			OpTimeout:      5 * time.Second,
			SendBufferSize: 256,
			MaxMessageSize: 4096,
		},
		Matching: MatchingConfig{
			CandidateLimit: 50,
			ScoreWorkers:   8,
		},
	}
}

// PathFromEnv loads envFiles (.env when none are given) into the process
// environment without overriding variables already set, and returns
// CONFIG_FILE or fallback. The returned error only reports an unreadable env
// file; the path is valid either way.
func PathFromEnv(fallback string, envFiles ...string) (string, error) {
	err := godotenv.Load(envFiles...)
	if v := os.Getenv("CONFIG_FILE"); v != "" {
		return v, err
	}
	return fallback, err
}

// Load reads path (if it exists) over the defaults and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Storage, "STORAGE")
	setString(&c.Server.Addr, "HTTP_ADDR")
	setString(&c.Server.Mode, "GIN_MODE")
	setString(&c.Postgres.DSN, "DATABASE_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.FileName, "LOG_FILE")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("GATEWAY_OP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Gateway.OpTimeout = d
		}
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is not configured (set JWT_SECRET)")
	}
	if c.Storage != "postgres" && c.Storage != "memory" {
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.Gateway.OpTimeout <= 0 {
		return errors.New("gateway.opTimeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
