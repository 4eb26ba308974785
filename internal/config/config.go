// Package config loads the server configuration from defaults, an optional
// TOML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the variable pointing at the optional TOML file.
const FileEnv = "APIPLANE_CONFIG"

// Duration is a time.Duration written as "30s" or "5m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// PermissionCache sizes the permission answer cache.
type PermissionCache struct {
	Size int      `toml:"size" validate:"gte=0"`
	TTL  Duration `toml:"ttl"`
}

// Config is the server configuration.
type Config struct {
	Port         int    `toml:"port" validate:"min=1,max=65535"`
	DatabasePath string `toml:"database_path" validate:"required"`
	LogLevel     string `toml:"log_level" validate:"oneof=debug info warn error"`

	// ReviewEnabled mandates an accepted review before an API can start.
	ReviewEnabled bool `toml:"review_enabled"`
	// StrictIfMatch rejects unparsable If-Match headers with 400.
	StrictIfMatch bool `toml:"strict_if_match"`

	Admins          []string        `toml:"admin_principals" validate:"dive,required"`
	PermissionCache PermissionCache `toml:"permission_cache"`
	Workers         int             `toml:"workers" validate:"min=1,max=100"`
	ShutdownTimeout Duration        `toml:"shutdown_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Port:         8080,
		DatabasePath: "apiplane.db",
		LogLevel:     "info",
		PermissionCache: PermissionCache{
			Size: 1024,
			TTL:  Duration{time.Minute},
		},
		Workers:         4,
		ShutdownTimeout: Duration{10 * time.Second},
	}
}

// Load builds the configuration: defaults, then the TOML file named by
// APIPLANE_CONFIG if set, then environment overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	integer("PORT", &c.Port)
	str("DATABASE_PATH", &c.DatabasePath)
	str("LOG_LEVEL", &c.LogLevel)
	boolean("REVIEW_ENABLED", &c.ReviewEnabled)
	boolean("STRICT_IF_MATCH", &c.StrictIfMatch)
	integer("PERMISSION_CACHE_SIZE", &c.PermissionCache.Size)
	duration("PERMISSION_CACHE_TTL", &c.PermissionCache.TTL)
	integer("WORKERS", &c.Workers)
	duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)

	if v, ok := lookup("ADMIN_PRINCIPALS"); ok && v != "" {
		c.Admins = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Admins = append(c.Admins, p)
			}
		}
	}

	return errors.Join(errs...)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		return name
	})
	return v
}

// Validate reports every invalid field by its TOML name.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Namespace is "Config.permission_cache.size"; drop the root.
		_, name, _ := strings.Cut(fe.Namespace(), ".")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (%s)", name, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q validation", name, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
