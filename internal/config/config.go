// Package config loads feedkeep settings.
//
// Sources apply in order, later ones winning: Default, an optional YAML
// file, FEEDKEEP_* environment variables, then command-line flags (bound
// by the cli package). The result is checked against an embedded CUE
// schema.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/feedkeep/internal/model"
)

// EnvPrefix prefixes every environment variable Config reads.
const EnvPrefix = "FEEDKEEP_"

//go:embed schema.cue
var schemaSource []byte

// Config is the full set of settings.
type Config struct {
	// Server is the instance base URL, e.g. https://example.social.
	Server string `yaml:"server" json:"server" env:"SERVER"`
	// Account is the local account scope, e.g. alice@example.social.
	Account string `yaml:"account" json:"account" env:"ACCOUNT"`
	// AccessToken is read from the environment only.
	AccessToken string `yaml:"-" json:"-" env:"ACCESS_TOKEN"`
	// Timeline is "home" or "public".
	Timeline string `yaml:"timeline" json:"timeline" env:"TIMELINE"`
	// DB is the SQLite database path, or ":memory:".
	DB string `yaml:"db" json:"db" env:"DB"`

	PageSize             int `yaml:"page_size" json:"page_size" env:"PAGE_SIZE"`
	NotificationPageSize int `yaml:"notification_page_size" json:"notification_page_size" env:"NOTIFICATION_PAGE_SIZE"`
	MaxTimelineRows      int `yaml:"max_timeline_rows" json:"max_timeline_rows" env:"MAX_TIMELINE_ROWS"`
	MaxNotifications     int `yaml:"max_notifications" json:"max_notifications" env:"MAX_NOTIFICATIONS"`

	// ExcludeTypes are notification types left out of sync results.
	ExcludeTypes []string `yaml:"exclude_types" json:"exclude_types" env:"EXCLUDE_TYPES" envSeparator:","`

	// Interval is the background schedule period for the watch command.
	Interval time.Duration `yaml:"interval" json:"interval" env:"INTERVAL"`

	// OTelEndpoint enables trace export when set.
	OTelEndpoint string `yaml:"otel_endpoint" json:"otel_endpoint" env:"OTEL_ENDPOINT"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Timeline:             "home",
		DB:                   "feedkeep.db",
		PageSize:             40,
		NotificationPageSize: 80,
		MaxTimelineRows:      1000,
		MaxNotifications:     500,
		Interval:             5 * time.Minute,
	}
}

// Load returns Default overlaid with the YAML file at path, if path is
// not empty, and then with the process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load reading environment variables from environ instead of
// the process environment when environ is not nil.
func LoadWith(path string, environ map[string]string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := ParseEnv(&cfg, environ); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ParseEnv overlays FEEDKEEP_* variables onto cfg. A nil environ reads the
// process environment.
func ParseEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	v := ctx.CompileBytes(data, cue.Filename("config"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	merged := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := merged.Validate(cue.Concrete(true)); err != nil {
		return invalid(err)
	}
	return nil
}

// invalid reports the first schema violation.
func invalid(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("invalid config: %w", err)
	}
	return fmt.Errorf("invalid config: %s", cueerrors.Details(errs[0], nil))
}

// AccountScope returns the configured account as a scope.
func (c Config) AccountScope() model.AccountScope {
	return model.AccountScope(c.Account)
}

// NotificationExcludes returns ExcludeTypes as notification types.
func (c Config) NotificationExcludes() []model.NotificationType {
	out := make([]model.NotificationType, 0, len(c.ExcludeTypes))
	for _, t := range c.ExcludeTypes {
		out = append(out, model.NotificationType(t))
	}
	return out
}
