package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/tvshows/authclient/session"
)

// EnvPrefix prefixes every environment variable read by [LoadConfigFromEnv].
const EnvPrefix = "TVSHOWS_"

// Config is the complete client configuration.
//
// Config values are configured during initialization and then treated as
// immutable.
type Config struct {
	// BaseURL is the API gateway, e.g. http://localhost:8080.
	BaseURL string `env:"BASE_URL, overwrite"`
	// APIVersion is sent as X-API-Version on every request.
	APIVersion string `env:"API_VERSION, overwrite"`
	// RequestTimeout bounds every call, including retries' individual attempts.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, overwrite"`

	Endpoints EndpointsConfig `env:", prefix=ENDPOINT_"`
	Session   SessionConfig   `env:", prefix=SESSION_"`
	Refresh   RefreshConfig   `env:", prefix=REFRESH_"`
	Audit     AuditConfig     `env:", prefix=AUDIT_"`
	Metrics   MetricsConfig   `env:", prefix=METRICS_"`
	Tracing   TracingConfig   `env:", prefix=TRACING_"`
	Routes    RoutesConfig    `env:", prefix=ROUTES_"`
}

// EndpointsConfig locates the auth and membership endpoints. Paths containing
// {username} are expanded with the escaped identity.
type EndpointsConfig struct {
	Login          string `env:"LOGIN, overwrite"`
	Refresh        string `env:"REFRESH, overwrite"`
	Register       string `env:"REGISTER, overwrite"`
	User           string `env:"USER, overwrite"`
	Promote        string `env:"PROMOTE, overwrite"`
	Users          string `env:"USERS, overwrite"`
	UpgradeProfile string `env:"UPGRADE_PROFILE, overwrite"`
	UpgradeAccount string `env:"UPGRADE_ACCOUNT, overwrite"`
}

// Session backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// SessionConfig selects the durable store for the session record.
type SessionConfig struct {
	Backend string `env:"BACKEND, overwrite"`
	// Key names the single stored record.
	Key string `env:"KEY, overwrite"`
	// Dir holds the record for the file backend. Empty means the user config
	// directory.
	Dir         string        `env:"DIR, overwrite"`
	RedisAddr   string        `env:"REDIS_ADDR, overwrite"`
	RedisPrefix string        `env:"REDIS_PREFIX, overwrite"`
	RedisTTL    time.Duration `env:"REDIS_TTL, overwrite"`
}

// RefreshConfig tunes credential renewal.
type RefreshConfig struct {
	// Deduplicate shares one exchange among concurrent refreshes.
	Deduplicate bool `env:"DEDUPLICATE, overwrite"`
	// EarlyRefreshWindow refreshes before sending when a JWT access credential
	// expires within the window. Zero disables it.
	EarlyRefreshWindow time.Duration `env:"EARLY_WINDOW, overwrite"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED, overwrite"`
	BufferSize int  `env:"BUFFER_SIZE, overwrite"`
	DropIfFull bool `env:"DROP_IF_FULL, overwrite"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED, overwrite"`
	EnableLatencyHistograms bool `env:"LATENCY, overwrite"`
}

// TracingConfig wraps the transport with OpenTelemetry client spans.
type TracingConfig struct {
	Enabled bool `env:"ENABLED, overwrite"`
}

// RoutesConfig points at an optional YAML or TOML route table. The built-in
// table is used when File is empty.
type RoutesConfig struct {
	File string `env:"FILE, overwrite"`
}

// DefaultConfig returns the configuration matching the catalog's production
// deployment.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8080",
		APIVersion:     "v1",
		RequestTimeout: 30 * time.Second,
		Endpoints: EndpointsConfig{
			Login:          "/api/auth/login",
			Refresh:        "/api/auth/refresh",
			Register:       "/api/auth/register",
			User:           "/api/auth/{username}",
			Promote:        "/api/auth/promote/{username}",
			Users:          "/api/auth/users",
			UpgradeProfile: "/api/users/upgrade",
			UpgradeAccount: "/api/auth/users/{username}/upgrade",
		},
		Session: SessionConfig{
			Backend:     BackendFile,
			Key:         session.DefaultKey,
			RedisPrefix: "tvshows",
		},
		Refresh: RefreshConfig{
			Deduplicate: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// LoadConfigFromEnv overlays TVSHOWS_* environment variables on
// [DefaultConfig].
func LoadConfigFromEnv(ctx context.Context) (Config, error) {
	return LoadConfig(ctx, envconfig.OsLookuper())
}

// LoadConfig overlays variables from lookuper, prefixed with [EnvPrefix], on
// [DefaultConfig] and validates the result.
func LoadConfig(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BaseURL %q must be an absolute URL", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("BaseURL scheme must be http or https")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("RequestTimeout must be > 0")
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		return errors.New("APIVersion must not be empty")
	}

	for name, p := range map[string]string{
		"Login":          c.Endpoints.Login,
		"Refresh":        c.Endpoints.Refresh,
		"Register":       c.Endpoints.Register,
		"User":           c.Endpoints.User,
		"Promote":        c.Endpoints.Promote,
		"Users":          c.Endpoints.Users,
		"UpgradeProfile": c.Endpoints.UpgradeProfile,
		"UpgradeAccount": c.Endpoints.UpgradeAccount,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("Endpoints %s must be an absolute path", name)
		}
	}
	if c.Endpoints.Login == c.Endpoints.Refresh {
		return errors.New("Endpoints Login and Refresh must differ")
	}

	switch c.Session.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.Session.RedisTTL < 0 {
			return errors.New("Session RedisTTL must be >= 0")
		}
	default:
		return fmt.Errorf("Session Backend must be %q, %q or %q", BackendFile, BackendRedis, BackendMemory)
	}
	if strings.TrimSpace(c.Session.Key) == "" || strings.ContainsAny(c.Session.Key, `/\`) {
		return errors.New("Session Key must be a non-empty name without path separators")
	}

	if c.Refresh.EarlyRefreshWindow < 0 {
		return errors.New("Refresh EarlyRefreshWindow must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	if c.Routes.File != "" {
		switch strings.ToLower(filepath.Ext(c.Routes.File)) {
		case ".yaml", ".yml", ".toml":
		default:
			return errors.New("Routes File must be .yaml, .yml or .toml")
		}
	}
	return nil
}

// sessionDir resolves the directory for the file backend.
func (c *Config) sessionDir() (string, error) {
	if c.Session.Dir != "" {
		return c.Session.Dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve session dir: %w", err)
	}
	return filepath.Join(base, "tvshows"), nil
}
