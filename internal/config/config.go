package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig
	Store     StoreConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type HTTPConfig struct {
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TLSCertFile     string
	TLSKeyFile      string
	AllowedOrigins  []string
	// TrustedProxies lists the proxy IPs or CIDRs whose forwarding headers
	// are believed. Empty means the client IP is the socket peer.
	TrustedProxies []string
}

// TLSEnabled reports whether both certificate and key are configured.
func (c HTTPConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type StoreConfig struct {
	Driver      string
	DatabaseURL string
}

// RedisConfig is optional; an empty Addr keeps limiters in process and
// disables event publishing.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type RateLimitConfig struct {
	LoginLimit       int
	LoginWindow      time.Duration
	BruteFreeRetries int
	BruteMinWait     time.Duration
	BruteMaxWait     time.Duration
	BruteLifetime    time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const (
	defaultPort             = 5000
	defaultRequestTimeout   = 5 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultTokenTTL         = time.Hour
	defaultBcryptCost       = 10
	defaultLoginLimit       = 100
	defaultLoginWindow      = 15 * time.Minute
	defaultBruteFreeRetries = 5
	defaultBruteMinWait     = 5 * time.Second
	defaultBruteMaxWait     = 60 * time.Second
	defaultBruteLifetime    = time.Hour
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// Load reads configuration from the environment, after merging a .env file
// when one exists. Variables already set in the environment win.
func Load() (Config, error) {
	return load(true)
}

// LoadOffline is Load for tools that never sign tokens; JWT_SECRET may be
// unset.
func LoadOffline() (Config, error) {
	return load(false)
}

func load(requireSecret bool) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	cfg := Config{
		Store: StoreConfig{
			Driver:      strings.ToLower(valueOrDefault("STORE_DRIVER", DriverPostgres)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", "info"),
			Format: valueOrDefault("LOG_FORMAT", "text"),
		},
		HTTP: HTTPConfig{
			TLSCertFile:    os.Getenv("TLS_CERT_FILE"),
			TLSKeyFile:     os.Getenv("TLS_KEY_FILE"),
			AllowedOrigins: splitCSV(os.Getenv("ALLOWED_ORIGINS")),
			TrustedProxies: splitCSV(os.Getenv("TRUSTED_PROXIES")),
		},
	}

	if requireSecret && cfg.Auth.JWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}
	if cfg.Store.Driver != DriverPostgres && cfg.Store.Driver != DriverMemory {
		return Config{}, fmt.Errorf("invalid STORE_DRIVER %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == DriverPostgres && cfg.Store.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL must be set for the postgres store")
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return Config{}, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	for _, proxy := range cfg.HTTP.TrustedProxies {
		if !validProxy(proxy) {
			return Config{}, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy)
		}
	}

	var err error
	if cfg.HTTP.Port, err = parsePort("PORT", defaultPort); err != nil {
		return Config{}, err
	}

	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"REDIS_DB", 0, &cfg.Redis.DB},
		{"BCRYPT_COST", defaultBcryptCost, &cfg.Auth.BcryptCost},
		{"LOGIN_RATE_LIMIT", defaultLoginLimit, &cfg.RateLimit.LoginLimit},
		{"BRUTE_FREE_RETRIES", defaultBruteFreeRetries, &cfg.RateLimit.BruteFreeRetries},
	}
	for _, f := range ints {
		if *f.dst, err = parseInt(f.key, f.fallback); err != nil {
			return Config{}, err
		}
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"TOKEN_TTL", defaultTokenTTL, &cfg.Auth.TokenTTL},
		{"REQUEST_TIMEOUT", defaultRequestTimeout, &cfg.HTTP.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"LOGIN_RATE_WINDOW", defaultLoginWindow, &cfg.RateLimit.LoginWindow},
		{"BRUTE_MIN_WAIT", defaultBruteMinWait, &cfg.RateLimit.BruteMinWait},
		{"BRUTE_MAX_WAIT", defaultBruteMaxWait, &cfg.RateLimit.BruteMaxWait},
		{"BRUTE_LIFETIME", defaultBruteLifetime, &cfg.RateLimit.BruteLifetime},
	}
	for _, f := range durations {
		if *f.dst, err = parseDuration(f.key, f.fallback); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func validProxy(v string) bool {
	if net.ParseIP(v) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(v)
	return err == nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return n, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("port %d is out of range", port)
	}
	return port, nil
}
