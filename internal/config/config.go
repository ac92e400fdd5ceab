package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates client configuration loaded from the environment.
type Config struct {
	Env            string
	HTTPAddr       string
	APIBaseURL     string
	SocketURL      string
	APITimeout     time.Duration
	AckTimeout     time.Duration
	DialTimeout    time.Duration
	RetryBackoff   []time.Duration
	DBDriver       string
	DBDSN          string
	AMQPURL        string
	AMQPExchange   string
	AuditRouting   string
	OTLPEndpoint   string
	ServiceName    string
	TimeZone       *time.Location
	LoginPath      string
	CORSOrigins    []string
	EnableDebugAPI bool
}

// Load reads .env (if present) and parses configuration.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env", "error", err)
	}

	cfg := Config{
		Env:          getEnv("APP_ENV", "dev"),
		HTTPAddr:     getEnv("HTTP_ADDR", "127.0.0.1:5174"),
		APIBaseURL:   strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
		SocketURL:    getEnv("SOCKET_URL", "ws://localhost:5000/ws"),
		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite3")),
		DBDSN:        getEnv("DB_DSN", "motors.db"),
		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "motors.audit"),
		AuditRouting: getEnv("AUDIT_ROUTING_KEY", "audit.client"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  getEnv("SERVICE_NAME", "motors-client"),
		LoginPath:    getEnv("LOGIN_PATH", "/login"),
		CORSOrigins:  parseList(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
	}

	var err error
	if cfg.APITimeout, err = parseDurationEnv("API_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.AckTimeout, err = parseDurationEnv("SOCKET_ACK_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.DialTimeout, err = parseDurationEnv("SOCKET_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = parseDurationList("RETRY_BACKOFF", "1s,5s,30s"); err != nil {
		return Config{}, err
	}
	if cfg.EnableDebugAPI, err = parseBoolEnv("ENABLE_DEBUG_API", false); err != nil {
		return Config{}, err
	}

	tz := getEnv("TZ_NAME", "Local")
	if cfg.TimeZone, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("invalid TZ_NAME %q: %w", tz, err)
	}

	switch cfg.DBDriver {
	case "sqlite3", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.SocketURL == "" {
		return Config{}, fmt.Errorf("SOCKET_URL is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseDurationList(key, def string) ([]time.Duration, error) {
	var out []time.Duration
	for _, raw := range strings.Split(getEnv(key, def), ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid %s component %q: %w", key, raw, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
