package utils

import (
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix marks the environment variables read as configuration, e.g.
// ARCHIVE_AUTH_SECRET sets auth.secret.
const EnvPrefix = "ARCHIVE_"

type Config struct {
	Env       string          `koanf:"env"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	BaseURL         string        `koanf:"baseurl"`
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	Secret       string        `koanf:"secret"`
	Issuer       string        `koanf:"issuer"`
	TTL          time.Duration `koanf:"ttl"`
	CookieName   string        `koanf:"cookiename"`
	CookieSecure bool          `koanf:"cookiesecure"`
	BcryptCost   int           `koanf:"bcryptcost"`
}

type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

// RateLimitConfig applies per client IP to the login and register routes.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func Default() *Config {
	return &Config{
		Env: "production",
		Server: ServerConfig{
			Addr:            ":5000",
			BaseURL:         "http://localhost:5000",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "data/archive.db"},
		Auth: AuthConfig{
			Issuer:       "archive",
			TTL:          30 * 24 * time.Hour,
			CookieName:   "jwt",
			CookieSecure: true,
			BcryptCost:   10,
		},
		CORS:      CORSConfig{Origins: []string{"http://localhost:5173"}},
		RateLimit: RateLimitConfig{RPS: 1, Burst: 10},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// configPath, then ARCHIVE_* environment variables. A dotenvPath, when set,
// is loaded into the process environment first; a missing file is ignored.
func Load(configPath, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load %s", dotenvPath)
		}
	}

	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "read config %s", configPath)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "stat config %s", configPath)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	cfg := Default()
	// development turns off the Secure cookie flag unless set explicitly
	if k.String("env") == "development" && !k.Exists("auth.cookiesecure") {
		cfg.Auth.CookieSecure = false
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret is required (set ARCHIVE_AUTH_SECRET)")
	}
	if c.Auth.TTL <= 0 {
		return errors.Errorf("auth.ttl must be positive, got %s", c.Auth.TTL)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return errors.Errorf("auth.bcryptcost must be within 4..31, got %d", c.Auth.BcryptCost)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	u, err := url.Parse(strings.TrimSpace(c.Server.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("server.baseurl must be an absolute http(s) URL, got %q", c.Server.BaseURL)
	}
	c.Server.BaseURL = strings.TrimRight(u.String(), "/")
	for i, o := range c.CORS.Origins {
		c.CORS.Origins[i] = strings.TrimSpace(o)
	}
	return nil
}
