// Package config loads service settings from defaults, an optional YAML
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Pusher91/fieldbutton/internal/bitrix"
	"github.com/Pusher91/fieldbutton/internal/domain"
)

const (
	// ConfigName is looked up as ./fieldbutton.yaml when no file is given.
	ConfigName = "fieldbutton"
	EnvPrefix  = "FIELDBUTTON"

	EnvDevelopment = "development"
	EnvProduction  = "production"

	MaxBitrixTimeout = 15 * time.Second
)

type Config struct {
	Port            int
	Env             string
	PublicURL       string
	DataDir         string
	FieldTypeFile   string
	ShutdownTimeout time.Duration

	Log       LogConfig
	Bitrix    BitrixConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	API       APIConfig
}

type LogConfig struct {
	Level string
}

type BitrixConfig struct {
	Domain    string
	Scheme    string
	Endpoints []string
	Timeout   time.Duration
}

type CacheConfig struct {
	Enabled bool
	Size    int
	TTL     time.Duration
}

// RateLimitConfig allows Max requests per Window across all clients.
// Max == 0 disables the limit.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// APIConfig gates the activity views (/events, /api/registrations*), which
// list the portals that registered through this service.
type APIConfig struct {
	Enabled bool
}

func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// NewViper returns a viper instance with defaults and env bindings applied.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", 3000)
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("public_url", "")
	v.SetDefault("data_dir", "fieldbutton_data")
	v.SetDefault("field_type_file", "")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("bitrix.domain", domain.DefaultDomain)
	v.SetDefault("bitrix.scheme", bitrix.DefaultScheme)
	v.SetDefault("bitrix.endpoints", []string{bitrix.DefaultEndpoint})
	v.SetDefault("bitrix.timeout", bitrix.DefaultTimeout)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("ratelimit.max", 100)
	v.SetDefault("ratelimit.window", 15*time.Minute)
	v.SetDefault("api.enabled", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Plain names kept for existing deployments.
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("env", EnvPrefix+"_ENV", "NODE_ENV")
	_ = v.BindEnv("bitrix.domain", EnvPrefix+"_BITRIX_DOMAIN", "BITRIX_DOMAIN")

	return v
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !isNotExist(err) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads file (or ./fieldbutton.yaml when file is empty and it exists)
// on top of v and returns the validated config.
func Load(v *viper.Viper, file string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = NewViper()
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		logger.Debug("Loaded config file", slog.String("path", file))
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			logger.Debug("No config file found, using defaults and environment")
		} else {
			logger.Debug("Loaded config file", slog.String("path", v.ConfigFileUsed()))
		}
	}

	cfg := &Config{
		Port:            v.GetInt("port"),
		Env:             strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		PublicURL:       strings.TrimRight(strings.TrimSpace(v.GetString("public_url")), "/"),
		DataDir:         strings.TrimSpace(v.GetString("data_dir")),
		FieldTypeFile:   strings.TrimSpace(v.GetString("field_type_file")),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Log: LogConfig{
			Level: strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		},
		Bitrix: BitrixConfig{
			Domain:    strings.ToLower(strings.TrimSpace(v.GetString("bitrix.domain"))),
			Scheme:    strings.ToLower(strings.TrimSpace(v.GetString("bitrix.scheme"))),
			Endpoints: splitList(v.GetStringSlice("bitrix.endpoints")),
			Timeout:   v.GetDuration("bitrix.timeout"),
		},
		Cache: CacheConfig{
			Enabled: v.GetBool("cache.enabled"),
			Size:    v.GetInt("cache.size"),
			TTL:     v.GetDuration("cache.ttl"),
		},
		RateLimit: RateLimitConfig{
			Max:    v.GetInt("ratelimit.max"),
			Window: v.GetDuration("ratelimit.window"),
		},
		API: APIConfig{
			Enabled: v.GetBool("api.enabled"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Env == "" {
		errs = append(errs, errors.New("env is required"))
	}
	if c.PublicURL != "" && !strings.HasPrefix(c.PublicURL, "https://") && !strings.HasPrefix(c.PublicURL, "http://") {
		errs = append(errs, fmt.Errorf("public_url %q must be an absolute http(s) URL", c.PublicURL))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if !domain.IsValidDomain(c.Bitrix.Domain) {
		errs = append(errs, fmt.Errorf("bitrix.domain %q is not a valid host", c.Bitrix.Domain))
	}
	if c.Bitrix.Scheme != "https" && c.Bitrix.Scheme != "http" {
		errs = append(errs, fmt.Errorf("bitrix.scheme %q must be http or https", c.Bitrix.Scheme))
	}
	if len(c.Bitrix.Endpoints) == 0 {
		errs = append(errs, errors.New("bitrix.endpoints must list at least one REST method"))
	}
	if c.Bitrix.Timeout <= 0 || c.Bitrix.Timeout > MaxBitrixTimeout {
		errs = append(errs, fmt.Errorf("bitrix.timeout %s must be in (0, %s]", c.Bitrix.Timeout, MaxBitrixTimeout))
	}
	if c.Cache.Enabled && (c.Cache.Size <= 0 || c.Cache.TTL <= 0) {
		errs = append(errs, errors.New("cache.size and cache.ttl must be > 0 when the cache is enabled"))
	}
	if c.RateLimit.Max < 0 {
		errs = append(errs, errors.New("ratelimit.max must be >= 0"))
	}
	if c.RateLimit.Max > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be > 0"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be > 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// splitList accepts YAML lists as well as comma/space separated env values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
