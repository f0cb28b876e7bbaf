// Package config loads knolarchive settings from a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix selects the environment variables read by Load.
// KNOLARCHIVE_DB_PATH sets db.path.
const EnvPrefix = "KNOLARCHIVE_"

// Config is the complete runtime configuration.
type Config struct {
	DB struct {
		Path string `koanf:"path" validate:"required"`
	} `koanf:"db"`

	HTTP struct {
		Addr string `koanf:"addr" validate:"required,hostname_port"`
	} `koanf:"http"`

	NATS struct {
		// URL is optional; without it events go to the log.
		URL     string `koanf:"url" validate:"omitempty,url"`
		Subject string `koanf:"subject" validate:"required"`
	} `koanf:"nats"`

	Batch struct {
		Workers int `koanf:"workers" validate:"gte=1,lte=64"`
	} `koanf:"batch"`

	Events struct {
		Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	} `koanf:"events"`

	Log struct {
		Level  string `koanf:"level" validate:"oneof=debug info warn error"`
		Format string `koanf:"format" validate:"oneof=json text"`
	} `koanf:"log"`

	Import struct {
		Repos   string   `koanf:"repos" validate:"required"`
		Owner   string   `koanf:"owner"`
		Sources []string `koanf:"sources"`
	} `koanf:"import"`
}

// RegisterFlags defines every setting as a flag on fs. Flag defaults are the
// configuration defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("db.path", "knolarchive.db", "Path to the SQLite database file")
	fs.String("http.addr", ":8080", "HTTP listen address")
	fs.String("nats.url", "", "NATS server URL; events are logged when empty")
	fs.String("nats.subject", "knolarchive", "Subject prefix for published events")
	fs.Int("batch.workers", 8, "Concurrent items per batch")
	fs.Duration("events.timeout", 2*time.Second, "Deadline for publishing the events of one mutation")
	fs.String("log.level", "info", "Log level (debug, info, warn, error)")
	fs.String("log.format", "text", "Log format (json, text)")
	fs.String("import.repos", "repos", "Directory where git sources are cloned")
	fs.String("import.owner", "", "User that owns imported cards")
	fs.StringSlice("import.sources", nil, "Local directories or git URLs to import")
}

// Load merges the file named by the --config flag, the environment and the
// parsed flags of fs, then validates the result.
func Load(fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString("config")
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config flag: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every setting and reports all problems at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
