package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"weodash/internal/engine"
)

const (
	// DataPathEnv names the spreadsheet to load.
	DataPathEnv = "DATA_PATH"

	DefaultConfigParentDir = "weo-dashboard"
	DefaultConfig          = "config.yaml"
	DefaultEnvFile         = ".env"
	DefaultListen          = ":8080"

	DefaultSessionIdleTTL = 30 * time.Minute
	DefaultMaxSessions    = 64
)

// Config holds everything the server and the export command need.
type Config struct {
	// DataPath comes from DATA_PATH, never from the yaml file.
	DataPath string `yaml:"-"`

	Listen   string              `yaml:"listen"`
	LogLevel string              `yaml:"log_level"`
	EnvFile  string              `yaml:"env_file"`
	Loader   engine.LoaderConfig `yaml:"loader"`
	Vintages engine.VintageRule  `yaml:"vintages"`
	Sessions Sessions            `yaml:"sessions"`
}

// Sessions bounds the memory held by dashboard sessions; each one owns a
// full copy of the table. Zero disables a limit.
type Sessions struct {
	IdleTTL time.Duration `yaml:"idle_ttl"`
	Max     int           `yaml:"max"`
}

// MissingConfigurationError is fatal at startup.
type MissingConfigurationError struct {
	Key string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s is not set", e.Key)
}

func Default() Config {
	return Config{
		Listen:   DefaultListen,
		LogLevel: "info",
		EnvFile:  DefaultEnvFile,
		Loader:   engine.DefaultLoaderConfig(),
		Vintages: engine.DefaultVintageRule(),
		Sessions: Sessions{IdleTTL: DefaultSessionIdleTTL, Max: DefaultMaxSessions},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/weo-dashboard/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, DefaultConfigParentDir, DefaultConfig)
}

func fileExists(name string) (bool, error) {
	_, err := os.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// loadFrom overlays the yaml file at path onto conf.
func loadFrom(path string, conf *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config %v: %w", path, err)
	}
	if err := yaml.Unmarshal(b, conf); err != nil {
		return fmt.Errorf("failed to unmarshal config %v: %w", path, err)
	}
	return nil
}

// Load builds the configuration. An explicit file must exist; without one the
// xdg config file is used when present, else built-in defaults. Afterwards the
// env file (if any) is sourced and DATA_PATH is read from the environment.
//
// The second return value is the config file actually used, or "" for defaults.
func Load(file string) (Config, string, error) {
	// loader and vintage sections replace the defaults as a whole
	conf := Default()
	conf.Loader = engine.LoaderConfig{}
	conf.Vintages = engine.VintageRule{}

	if file != "" {
		if err := loadFrom(file, &conf); err != nil {
			return conf, "", err
		}
	} else {
		file = DefaultPath()
		exists, err := fileExists(file)
		if err != nil {
			return conf, "", fmt.Errorf("failed to check if file %v exists: %w", file, err)
		}
		if !exists {
			file = ""
		} else if err := loadFrom(file, &conf); err != nil {
			return conf, "", err
		}
	}

	conf.Loader = withLoaderDefaults(conf.Loader)
	if len(conf.Vintages.Forecast) == 0 && len(conf.Vintages.Actual) == 0 {
		conf.Vintages = engine.DefaultVintageRule()
	}

	if conf.EnvFile != "" {
		// variables already in the environment win over the file
		if err := godotenv.Load(conf.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return conf, file, fmt.Errorf("failed to load env file %v: %w", conf.EnvFile, err)
		}
	}
	conf.DataPath = os.Getenv(DataPathEnv)

	return conf, file, nil
}

func withLoaderDefaults(lc engine.LoaderConfig) engine.LoaderConfig {
	if lc.Layout == "" && lc.Columns.Country == "" && len(lc.Measures) == 0 {
		def := engine.DefaultLoaderConfig()
		def.Sheet = lc.Sheet
		if lc.Clip != nil {
			def.Clip = lc.Clip
		}
		return def
	}
	if lc.Layout == engine.LayoutLong && lc.Columns.Country == "" {
		lc.Columns = engine.DefaultLongColumns()
	}
	return lc
}

// Validate reports settings the application cannot start without.
func (c Config) Validate() error {
	if c.DataPath == "" {
		return &MissingConfigurationError{Key: DataPathEnv}
	}
	return nil
}
