// Package config provides application configuration loaded from environment
// variables (optionally seeded from a .env file) with defaults and validation.
// It centralizes settings such as server timeouts, logging, storage, the
// external profile API, error notifications, username policy and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS      bool
	HSTSMaxAge      time.Duration
	WellKnownMaxAge time.Duration // Cache-Control max-age on resolved DID documents
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "atproto-handles")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and configures the storage backend.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	URL    string // Postgres DSN
}

// ProfileConfig configures the external identity lookup (Bluesky AppView).
type ProfileConfig struct {
	BaseURL       string        // e.g. https://public.api.bsky.app
	Timeout       time.Duration // per lookup
	DefaultSuffix string        // appended to dotless handles, e.g. "bsky.social"
}

// NotifyConfig configures the best-effort error webhook.
//
// The webhook URL itself is a secret and is not stored here: URLEnv names the
// environment variable that is read at call time.
type NotifyConfig struct {
	URLEnv  string
	Mention string
	Timeout time.Duration
}

// PolicyConfig holds username policy lists.
type PolicyConfig struct {
	Denylist     []string // added to the built-in blocked terms
	DenylistFile string   // newline-separated blocked terms, also added
	Reserved     []string // names that cannot be claimed
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	DB      DBConfig
	Profile ProfileConfig
	Notify  NotifyConfig
	Policy  PolicyConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
//
// A .env file in the working directory is loaded first when present; values
// already set in the process environment win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "handles.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		Profile: ProfileConfig{
			BaseURL:       strings.TrimRight(getenv("PROFILE_API_URL", "https://public.api.bsky.app"), "/"),
			Timeout:       getdur("PROFILE_TIMEOUT", 5*time.Second),
			DefaultSuffix: strings.Trim(getenv("DEFAULT_HANDLE_SUFFIX", "bsky.social"), ". "),
		},
		Notify: NotifyConfig{
			URLEnv:  getenv("NOTIFY_WEBHOOK_ENV", "DISCORD_ERROR_WEBHOOK"),
			Mention: getenv("NOTIFY_MENTION", ""),
			Timeout: getdur("NOTIFY_TIMEOUT", 5*time.Second),
		},
		Policy: PolicyConfig{
			Denylist:     splitCSV(getenv("DENYLIST", "")),
			DenylistFile: getenv("DENYLIST_FILE", ""),
			Reserved:     splitCSV(getenv("RESERVED_USERNAMES", "")),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS:      getbool("ENABLE_HSTS", false),
			HSTSMaxAge:      getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			WellKnownMaxAge: getdur("WELL_KNOWN_MAX_AGE", 5*time.Minute),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "atproto-handles"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if !strings.HasPrefix(cfg.Profile.BaseURL, "http://") && !strings.HasPrefix(cfg.Profile.BaseURL, "https://") {
		return cfg, errors.New("PROFILE_API_URL must be an http(s) URL")
	}
	if cfg.Profile.Timeout <= 0 || cfg.Notify.Timeout <= 0 {
		return cfg, errors.New("PROFILE_TIMEOUT and NOTIFY_TIMEOUT must be positive durations")
	}
	if cfg.Profile.DefaultSuffix == "" {
		return cfg, errors.New("DEFAULT_HANDLE_SUFFIX must not be empty")
	}
	if strings.TrimSpace(cfg.Notify.URLEnv) == "" {
		return cfg, errors.New("NOTIFY_WEBHOOK_ENV must not be empty")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Security.WellKnownMaxAge < 0 {
		return cfg, errors.New("WELL_KNOWN_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
