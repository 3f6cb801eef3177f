// Package config loads tally.yaml.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file at the workspace root.
const FileName = "tally.yaml"

// EnvPrefix prefixes environment overrides, e.g. TALLY_DATABASE_PATH.
const EnvPrefix = "TALLY"

// EnvFile holds overrides next to the config file, in KEY=value form.
// Variables already set in the environment win over it.
const EnvFile = ".env"

// Config represents the top-level tally.yaml configuration. Relative paths
// are resolved against the directory holding the config file.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Formats  FileConfig     `yaml:"formats" mapstructure:"formats"`
	Rules    FileConfig     `yaml:"rules" mapstructure:"rules"`
	Accounts FileConfig     `yaml:"accounts" mapstructure:"accounts"`
	Import   ImportConfig   `yaml:"import" mapstructure:"import"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`

	// Root is the workspace directory; it is not stored.
	Root string `yaml:"-" mapstructure:"-"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// FileConfig locates one user-authored file.
type FileConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ImportConfig controls the statement import workflow.
type ImportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"` // root of per-account import dirs
}

// ClassifyConfig controls batch classification.
type ClassifyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"` // 0 = one per CPU
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Default returns a Config with sensible defaults for a new workspace.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "tally.db"},
		Formats:  FileConfig{Path: "formats.yaml"},
		Rules:    FileConfig{Path: "rules.yaml"},
		Accounts: FileConfig{Path: "accounts.csv"},
		Import:   ImportConfig{Dir: "import"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the config file at path, applying defaults and TALLY_*
// environment overrides. The file must exist.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadOptional is Load, except a missing file yields the defaults (still
// subject to environment overrides).
func LoadOptional(path string) (*Config, error) {
	return load(path, true)
}

func defaults() map[string]any {
	def := Default()
	return map[string]any{
		"database.path":    def.Database.Path,
		"formats.path":     def.Formats.Path,
		"rules.path":       def.Rules.Path,
		"accounts.path":    def.Accounts.Path,
		"import.dir":       def.Import.Dir,
		"classify.workers": def.Classify.Workers,
		"log.level":        def.Log.Level,
		"log.format":       def.Log.Format,
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func load(path string, optional bool) (*Config, error) {
	v := viper.New()
	keys := defaults()
	for k, val := range keys {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !optional || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(path), EnvFile)
	dotenv, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", envPath, err)
	}
	for k := range keys {
		name := envName(k)
		if val, ok := dotenv[name]; ok {
			if _, set := os.LookupEnv(name); !set {
				v.Set(k, val)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	cfg.Root = abs
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Classify.Workers < 0 {
		return fmt.Errorf("classify.workers must be >= 0, got %d", c.Classify.Workers)
	}
	return nil
}

// Path resolves p against the workspace root.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// NewLogger builds the logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := log.Options{Level: level, ReportTimestamp: true}
	if c.Format == "json" {
		opts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, opts), nil
}
