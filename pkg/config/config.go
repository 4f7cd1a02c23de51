// Package config handles minijvm.toml run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the name of the configuration file.
const FileName = "minijvm.toml"

// Defaults
const (
	DefaultEntry           = "main"
	DefaultMaxInstructions = 1_000_000
	DefaultLogLevel        = "info"
)

// Config represents a minijvm.toml file.
type Config struct {
	Run Run `toml:"run"`
	Log Log `toml:"log"`

	// Path is the file the configuration was read from (set at load time).
	// It is empty when defaults are in use.
	Path string `toml:"-"`
}

// Run configures execution.
type Run struct {
	Entry           string `toml:"entry"`
	MaxInstructions int    `toml:"max_instructions"`
}

// Log configures logging.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Run: Run{
			Entry:           DefaultEntry,
			MaxInstructions: DefaultMaxInstructions,
		},
		Log: Log{Level: DefaultLogLevel},
	}
}

// Load parses a minijvm.toml file from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Keys missing from the
// file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a minijvm.toml file, then
// loads and returns it. Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	if c.Run.Entry == "" {
		c.Run.Entry = DefaultEntry
	}
	if c.Run.MaxInstructions < 0 {
		return fmt.Errorf("run.max_instructions must not be negative, got %d", c.Run.MaxInstructions)
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// NewLogger builds the logger described by l.
func (l Log) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
