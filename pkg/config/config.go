package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BAZARCHE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "BAZARCHE_APP_ENV"
	EnvPort           = "BAZARCHE_APP_PORT"
	EnvBackendDevURL  = "BAZARCHE_BACKEND_DEV_URL"
	EnvBackendProdURL = "BAZARCHE_BACKEND_PROD_URL"
	EnvSessionSecret  = "BAZARCHE_SESSION_SECRET"
	EnvRedisURL       = "BAZARCHE_REDIS_URL"
	EnvLoginKeyMode   = "BAZARCHE_LOGIN_KEY_MODE"

	// LoginKeyConstant keys every client under one shared attempt counter.
	LoginKeyConstant = "constant"
	// LoginKeyIP keys attempt counters by the caller's address.
	LoginKeyIP = "ip"
)

type Config struct {
	App            AppConfig
	Backend        BackendConfig
	Store          StoreConfig
	Session        SessionConfig
	LoginRateLimit LoginRateLimitConfig
	Redis          RedisConfig
	Comments       CommentsConfig
	Seed           SeedConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"BAZARCHE_APP_ENV" required:"true"`
	Port         string   `envconfig:"BAZARCHE_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"BAZARCHE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"BAZARCHE_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"BAZARCHE_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"BAZARCHE_CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ConsoleLogs reports whether logs should be written for a terminal.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

// BackendConfig points at the REST backend that owns persistence and auth.
type BackendConfig struct {
	DevBaseURL  string        `envconfig:"BAZARCHE_BACKEND_DEV_URL" default:"http://localhost:8000/api"`
	ProdBaseURL string        `envconfig:"BAZARCHE_BACKEND_PROD_URL"`
	Timeout     time.Duration `envconfig:"BAZARCHE_BACKEND_TIMEOUT" default:"10s"`
	Production  bool          `ignored:"true"`
}

// BaseURL returns the backend host for the active environment.
func (b BackendConfig) BaseURL() string {
	if b.Production && b.ProdBaseURL != "" {
		return strings.TrimRight(b.ProdBaseURL, "/")
	}
	return strings.TrimRight(b.DevBaseURL, "/")
}

type StoreConfig struct {
	Name string `envconfig:"BAZARCHE_STORE_NAME" default:"بازارچه آنلاین دبیرستان شهید بهشتی"`
}

type SessionConfig struct {
	CookieName    string        `envconfig:"BAZARCHE_SESSION_COOKIE" default:"bazarche_session"`
	Secret        string        `envconfig:"BAZARCHE_SESSION_SECRET" required:"true"`
	Issuer        string        `envconfig:"BAZARCHE_SESSION_ISSUER" default:"bazarche"`
	TTL           time.Duration `envconfig:"BAZARCHE_SESSION_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"BAZARCHE_SESSION_SWEEP_INTERVAL" default:"10m"`
	SecureCookie  bool          `envconfig:"BAZARCHE_SESSION_SECURE_COOKIE" default:"false"`
}

type LoginRateLimitConfig struct {
	MaxFailures int           `envconfig:"BAZARCHE_LOGIN_MAX_FAILURES" default:"3"`
	Lockout     time.Duration `envconfig:"BAZARCHE_LOGIN_LOCKOUT" default:"5m"`
	KeyMode     string        `envconfig:"BAZARCHE_LOGIN_KEY_MODE" default:"constant"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `envconfig:"BAZARCHE_LOGIN_TRUST_PROXY" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZARCHE_REDIS_URL"`
	PoolSize     int           `envconfig:"BAZARCHE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZARCHE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZARCHE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZARCHE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"BAZARCHE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether a shared redis store was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type CommentsConfig struct {
	PollInterval time.Duration `envconfig:"BAZARCHE_COMMENTS_POLL_INTERVAL" default:"15s"`
	CacheTTL     time.Duration `envconfig:"BAZARCHE_COMMENTS_CACHE_TTL" default:"30s"`
}

type SeedConfig struct {
	Enabled bool `envconfig:"BAZARCHE_SEED_DEMO_DATA" default:"true"`
}

func (c *Config) validate() error {
	c.Backend.Production = c.App.IsProd()
	if c.Backend.Production && strings.TrimSpace(c.Backend.ProdBaseURL) == "" {
		return fmt.Errorf("%s is required when %s=%s", EnvBackendProdURL, EnvAppEnv, AppEnvProd)
	}
	if _, err := url.ParseRequestURI(c.Backend.BaseURL()); err != nil {
		return fmt.Errorf("invalid backend base url %q: %w", c.Backend.BaseURL(), err)
	}
	mode := strings.ToLower(strings.TrimSpace(c.LoginRateLimit.KeyMode))
	switch mode {
	case "":
		c.LoginRateLimit.KeyMode = LoginKeyConstant
	case LoginKeyConstant, LoginKeyIP:
		c.LoginRateLimit.KeyMode = mode
	default:
		return fmt.Errorf("%s must be %q or %q", EnvLoginKeyMode, LoginKeyConstant, LoginKeyIP)
	}
	if c.LoginRateLimit.MaxFailures <= 0 {
		return fmt.Errorf("login max failures must be positive")
	}
	return nil
}
