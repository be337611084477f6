// Package config loads crudmodel's configuration.
//
// Values are layered, later sources overriding earlier ones: built-in
// defaults, the YAML config file, CRUDMODEL_ environment variables and
// explicitly set command line flags.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/mickamy/crudmodel/orm"
)

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "crudmodel.yaml"

// EnvPrefix marks environment variables read into the configuration.
// Nested keys are separated by a double underscore, for example
// CRUDMODEL_CONNECTIONS__MAIN__HOST.
const EnvPrefix = "CRUDMODEL_"

// Connection is one named database.
type Connection struct {
	Driver   string            `koanf:"driver"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Params   map[string]string `koanf:"params"`
}

// Config holds all configuration options.
type Config struct {
	Default          string                `koanf:"default"`
	Connections      map[string]Connection `koanf:"connections"`
	LogLevel         string                `koanf:"log_level"`
	Debug            bool                  `koanf:"debug"`
	MaxRelationDepth int                   `koanf:"max_relation_depth"`
	TableNaming      string                `koanf:"table_naming"`

	// File is the config file that was read, empty if none.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"default":            orm.DefaultConnection,
		"log_level":          "info",
		"debug":              false,
		"max_relation_depth": orm.DefaultMaxDepth,
		"table_naming":       "plural",
	}
}

// Load reads the configuration. cfgFile may be empty, in which case
// DefaultFile is used if it exists. flags may be nil. Without any configured
// connection the default key points at an in-memory SQLite database.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := findConfigFile(cfgFile)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// CRUDMODEL_CONNECTIONS__MAIN__HOST -> connections.main.host
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			switch f.Name {
			case "connection":
				return "default", posflag.FlagVal(flags, f)
			case "log-level", "max-relation-depth", "table-naming", "debug":
				return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
			}
			return "", nil
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = path
	if len(cfg.Connections) == 0 {
		cfg.Connections = map[string]Connection{
			cfg.Default: {Driver: "sqlite", Database: ":memory:"},
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Validate checks that the default connection exists and that every
// connection names a supported driver.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := c.Connections[c.Default]; !ok {
		errs = append(errs, fmt.Errorf("default connection %q is not configured", c.Default))
	}
	for _, key := range slices.Sorted(maps.Keys(c.Connections)) {
		if _, err := orm.DialectFor(c.Connections[key].Driver); err != nil {
			errs = append(errs, fmt.Errorf("connection %q: %w", key, err))
		}
	}
	if c.MaxRelationDepth < 0 {
		errs = append(errs, errors.New("max_relation_depth must not be negative"))
	}
	if _, err := c.naming(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ConnConfigs converts the configured connections for orm.NewConnectionHandler.
func (c *Config) ConnConfigs() map[string]orm.ConnConfig {
	out := make(map[string]orm.ConnConfig, len(c.Connections))
	for key, conn := range c.Connections {
		out[key] = orm.ConnConfig{
			Driver:   conn.Driver,
			Host:     conn.Host,
			Port:     conn.Port,
			Database: conn.Database,
			User:     conn.User,
			Password: conn.Password,
			Params:   maps.Clone(conn.Params),
		}
	}
	return out
}

// ModelOptions returns the orm.Model options the configuration implies.
func (c *Config) ModelOptions() []orm.ModelOption {
	opts := []orm.ModelOption{orm.WithMaxDepth(c.MaxRelationDepth)}
	if fn, err := c.naming(); err == nil {
		opts = append(opts, orm.WithTableNaming(fn))
	}
	return opts
}

func (c *Config) naming() (orm.TableNaming, error) {
	switch strings.ToLower(c.TableNaming) {
	case "", "plural":
		return orm.PluralTables, nil
	case "lower":
		return orm.LowerTables, nil
	default:
		return nil, fmt.Errorf("unknown table_naming %q (want plural or lower)", c.TableNaming)
	}
}
