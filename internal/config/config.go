// Package config loads the application configuration from an optional
// YAML file overlaid with command-line flags, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

// envPrefix selects the process environment variables that feed the
// config. Key names use "__" to nest, because "_" already appears inside
// key names: STUDYDECK_DB_PATH -> db_path,
// STUDYDECK_REVIEW__DAILY_LIMIT -> review.daily_limit.
const envPrefix = "STUDYDECK_"

// Review configures the default study session.
type Review struct {
	// DailyLimit caps how many cards one session may contain.
	DailyLimit int `koanf:"daily_limit" validate:"gt=0"`
	// Scope selects which cards enter a session: overdue, new or all.
	Scope string `koanf:"scope" validate:"oneof=overdue new all"`
}

// Config is the full application configuration.
type Config struct {
	// DBPath locates the SQLite database file.
	DBPath string `koanf:"db_path" validate:"required"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	// CacheDir holds mirrored deck repositories.
	CacheDir string `koanf:"cache_dir" validate:"required"`

	Review Review `koanf:"review"`
}

// Default returns the configuration used when neither file nor flags say
// otherwise.
func Default() Config {
	return Config{
		DBPath:   "studydeck.db",
		LogLevel: "info",
		CacheDir: "decks",
		Review: Review{
			DailyLimit: 30,
			Scope:      "all",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// one exists, then STUDYDECK_* environment variables, then any flags the
// user actually set. A missing file at the default path is fine; a
// malformed one is not.
func Load(path string, flags *flag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		switch _, err := os.Stat(path); {
		case err == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		// Flags only override keys they were explicitly set to; flag
		// defaults never shadow file values.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envToKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate checks the configuration's declared constraints.
func Validate(cfg Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: field %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
