package portalauth

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/MrEthical07/portalauth/attempt"
	"github.com/MrEthical07/portalauth/jwt"
)

// Config is the full process configuration, normally read from TOML.
type Config struct {
	JWT      JWTConfig      `toml:"jwt"`
	Attempts AttemptsConfig `toml:"attempts"`
	Security SecurityConfig `toml:"security"`
	Store    StoreConfig    `toml:"store"`
	Redis    RedisConfig    `toml:"redis"`
	HTTP     HTTPConfig     `toml:"http"`
	Log      LogConfig      `toml:"log"`
	Audit    AuditConfig    `toml:"audit"`
}

type JWTConfig struct {
	Secret   string        `toml:"secret"`
	Issuer   string        `toml:"issuer"`
	Audience string        `toml:"audience"`
	Lifetime time.Duration `toml:"lifetime"`
}

type AttemptsConfig struct {
	// Backend is "memory" or "redis".
	Backend    string        `toml:"backend"`
	Window     time.Duration `toml:"window"`
	MaxEntries int           `toml:"max_entries"`
	Threshold  int           `toml:"threshold"`
}

type SecurityConfig struct {
	// KeepAttemptsWhileLocked keeps the failure count of a locked account
	// instead of clearing it when the account is looked up.
	KeepAttemptsWhileLocked bool `toml:"keep_attempts_while_locked"`
	// Hasher is "bcrypt" or "argon2".
	Hasher     string `toml:"hasher"`
	BcryptCost int    `toml:"bcrypt_cost"`
}

type StoreConfig struct {
	// Driver is "memory", "postgres" or "sqlite".
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	// Embedded starts an in-process miniredis instead of dialing Addr.
	Embedded bool `toml:"embedded"`
}

type HTTPConfig struct {
	Addr              string        `toml:"addr"`
	ReadHeaderTimeout time.Duration `toml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `toml:"shutdown_timeout"`
	// LoginRate is the per-client request rate allowed on login and register.
	LoginRate  float64 `toml:"login_rate"`
	LoginBurst int     `toml:"login_burst"`
	// TrustedProxies lists the CIDRs or addresses whose X-Forwarded-For
	// header is believed. Empty means the socket address is always used.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// ProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (h HTTPConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(h.TrustedProxies))
	for _, raw := range h.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("HTTP TrustedProxies entry %q is not a CIDR or address", raw)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type AuditConfig struct {
	Enabled    bool `toml:"enabled"`
	BufferSize int  `toml:"buffer_size"`
	DropIfFull bool `toml:"drop_if_full"`
}

// DefaultConfig returns the settings used when no file overrides them. The
// JWT secret has no default.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:   "Said App",
			Audience: "User Management Portal",
			Lifetime: 5 * 24 * time.Hour,
		},
		Attempts: AttemptsConfig{
			Backend:    "memory",
			Window:     attempt.DefaultWindow,
			MaxEntries: attempt.DefaultMaxEntries,
			Threshold:  attempt.DefaultThreshold,
		},
		Security: SecurityConfig{Hasher: "bcrypt"},
		Store:    StoreConfig{Driver: "memory"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			LoginRate:         1,
			LoginBurst:        10,
		},
		Log:   LogConfig{Level: "info", Format: "text"},
		Audit: AuditConfig{BufferSize: 256},
	}
}

// LoadConfig reads path over DefaultConfig, applies environment overrides
// and validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("PORTAL_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := getenv("PORTAL_DB_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := getenv("PORTAL_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("PORTAL_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate reports the first setting that would make startup fail.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT Secret is required")
	}
	if c.JWT.Lifetime <= 0 {
		return errors.New("JWT Lifetime must be > 0")
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		return errors.New("JWT Issuer and Audience are required")
	}

	switch c.Attempts.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("Attempts Backend %q must be 'memory' or 'redis'", c.Attempts.Backend)
	}
	if c.Attempts.Window <= 0 {
		return errors.New("Attempts Window must be > 0")
	}
	if c.Attempts.MaxEntries <= 0 {
		return errors.New("Attempts MaxEntries must be > 0")
	}
	if c.Attempts.Threshold <= 0 {
		return errors.New("Attempts Threshold must be > 0")
	}

	switch c.Security.Hasher {
	case "bcrypt", "argon2":
	default:
		return fmt.Errorf("Security Hasher %q must be 'bcrypt' or 'argon2'", c.Security.Hasher)
	}

	switch c.Store.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("Store DSN is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("Store Driver %q must be 'memory', 'postgres' or 'sqlite'", c.Store.Driver)
	}

	if c.Attempts.Backend == "redis" && !c.Redis.Embedded && c.Redis.Addr == "" {
		return errors.New("Redis Addr is required for the redis attempts backend")
	}
	if c.HTTP.Addr == "" {
		return errors.New("HTTP Addr is required")
	}
	if c.HTTP.LoginRate <= 0 || c.HTTP.LoginBurst <= 0 {
		return errors.New("HTTP LoginRate and LoginBurst must be > 0")
	}
	if _, err := c.HTTP.ProxyPrefixes(); err != nil {
		return err
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}

// TokenConfig derives the codec settings.
func (c *Config) TokenConfig() jwt.Config {
	return jwt.Config{
		Secret:   []byte(c.JWT.Secret),
		Issuer:   c.JWT.Issuer,
		Audience: c.JWT.Audience,
		Lifetime: c.JWT.Lifetime,
	}
}

// AttemptOptions derives the in-process limiter settings.
func (c *Config) AttemptOptions() attempt.Options {
	return attempt.Options{
		Window:     c.Attempts.Window,
		MaxEntries: c.Attempts.MaxEntries,
		Threshold:  c.Attempts.Threshold,
	}
}
