package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	Database DatabaseConfig
	Redis    RedisConfig
	Yahoo    YahooConfig
	Screen   ScreenConfig

	// Logging
	LogLevel  string
	LogFormat string // json, console

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration.
// DATABASE_URL이 비어있으면 DB 기능 비활성화 (dry-run 전용)
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// YahooConfig holds Yahoo Finance chart API configuration
type YahooConfig struct {
	BaseURL        string
	RequestsPerSec float64 // 초당 요청 제한
	Timeout        time.Duration
}

// ScreenConfig holds screening run configuration
type ScreenConfig struct {
	ConfigPath   string        // 스크린 YAML 경로
	Workers      int           // 동시 처리 워커 수
	FetchTimeout time.Duration // 티커별 조회 타임아웃
	FetchRetries int           // 티커별 재시도 횟수
	OutputDir    string        // CSV/TXT 출력 디렉토리
	UniverseFile string        // 티커 목록 파일 (비어있으면 위키피디아)
}

// Load reads configuration from environment variables (and .env when present).
// Malformed values are reported together with validation failures.
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	e := &env{}
	cfg := &Config{
		Port: e.str("PORT", "8080"),
		Env:  e.str("ENV", "development"),

		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxConns:        e.int("DB_MAX_CONNS", 25),
			MinConns:        e.int("DB_MIN_CONNS", 5),
			MaxConnLifetime: e.duration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: e.duration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},

		Redis: RedisConfig{
			Host:     e.str("REDIS_HOST", "localhost"),
			Port:     e.str("REDIS_PORT", "6379"),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.int("REDIS_DB", 0),
			Enabled:  e.bool("REDIS_ENABLED", false),
		},

		Yahoo: YahooConfig{
			BaseURL:        e.str("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			RequestsPerSec: e.float("YAHOO_RPS", 2),
			Timeout:        e.duration("YAHOO_TIMEOUT", 15*time.Second),
		},

		Screen: ScreenConfig{
			ConfigPath:   e.str("SCREEN_CONFIG", "config/screen.yaml"),
			Workers:      e.int("SCREEN_WORKERS", 8),
			FetchTimeout: e.duration("SCREEN_FETCH_TIMEOUT", 30*time.Second),
			FetchRetries: e.int("SCREEN_FETCH_RETRIES", 3),
			OutputDir:    e.str("SCREEN_OUTPUT_DIR", "output"),
			UniverseFile: e.str("SCREEN_UNIVERSE_FILE", ""),
		},

		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "json"),

		MetricsEnabled: e.bool("METRICS_ENABLED", true),
		MetricsPort:    e.str("METRICS_PORT", "9090"),
	}

	if err := errors.Join(e.errs, cfg.validate()); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	var errs []error

	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("ENV must be one of: development, staging, production (got %q)", c.Env))
	}
	if c.Screen.Workers < 1 {
		errs = append(errs, errors.New("SCREEN_WORKERS must be >= 1"))
	}
	if c.Screen.FetchRetries < 0 {
		errs = append(errs, errors.New("SCREEN_FETCH_RETRIES must be >= 0"))
	}
	if c.Yahoo.RequestsPerSec <= 0 {
		errs = append(errs, errors.New("YAHOO_RPS must be > 0"))
	}
	return errors.Join(errs...)
}

// HasDatabase reports whether a PostgreSQL connection is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// loadEnvFile loads the first .env found next to the working directory or the binary
func loadEnvFile() {
	paths := []string{".env", "../.env"}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			// 이미 설정된 환경변수는 덮어쓰지 않음
			_ = godotenv.Load(path)
			return
		}
	}
}

// env reads typed variables; an unset variable yields the default,
// a malformed one yields the default plus a recorded error
type env struct {
	errs error
}

func (e *env) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	return parse(e, key, def, strconv.Atoi)
}

func (e *env) float(key string, def float64) float64 {
	return parse(e, key, def, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func (e *env) bool(key string, def bool) bool {
	return parse(e, key, def, strconv.ParseBool)
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	return parse(e, key, def, time.ParseDuration)
}

func parse[T any](e *env, key string, def T, conv func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := conv(raw)
	if err != nil {
		e.errs = errors.Join(e.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		return def
	}
	return v
}
