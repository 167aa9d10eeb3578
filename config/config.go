// Package config loads the application settings from a YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
)

// DefaultPath is used when no config file is given on the command line.
const DefaultPath = "expt.yaml"

var ErrInvalid = errors.New("invalid config")

// Settings for the command line tools and web server.
type Settings struct {
	DataDir  string   `yaml:"data_dir"`
	Reports  []string `yaml:"reports"`
	Database string   `yaml:"database"`
	Listen   string   `yaml:"listen"`
	LogLevel string   `yaml:"log_level"`
	Auth     Auth     `yaml:"auth"`
}

// Auth enables HTTP basic auth on the web server when User is set.
type Auth struct {
	User         string `yaml:"user"`
	PasswordHash string `yaml:"password_hash"`
	SessionKey   string `yaml:"session_key"`
}

// Default settings
func Default() Settings {
	return Settings{
		DataDir:  "data",
		Database: "experiments.db",
		Listen:   ":8080",
		LogLevel: "info",
	}
}

// Load reads settings from path. A missing file is only an error if explicit is set, else defaults are used.
// Environment variables EXPT_DATA_DIR, EXPT_DATABASE, EXPT_LISTEN and EXPT_LOG_LEVEL override the file.
func Load(path string, explicit bool) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("%s: %w", path, err)
		}
		s.resolve(filepath.Dir(path))
	case os.IsNotExist(err) && !explicit:
	default:
		return s, err
	}
	s.applyEnv()
	return s, s.Validate()
}

// relative report and database paths are taken from the directory holding the config file
func (s *Settings) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, p := range s.Reports {
		s.Reports[i] = abs(p)
	}
	s.DataDir = abs(s.DataDir)
	s.Database = abs(s.Database)
}

func (s *Settings) applyEnv() {
	for key, dst := range map[string]*string{
		"EXPT_DATA_DIR":  &s.DataDir,
		"EXPT_DATABASE":  &s.Database,
		"EXPT_LISTEN":    &s.Listen,
		"EXPT_LOG_LEVEL": &s.LogLevel,
	} {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			*dst = val
		}
	}
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	var err error
	if s.Listen == "" {
		err = multierr.Append(err, fmt.Errorf("%w: listen address is empty", ErrInvalid))
	}
	if _, lerr := zapcore.ParseLevel(s.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: log_level: %v", ErrInvalid, lerr))
	}
	if s.Auth.User != "" {
		if _, cerr := bcrypt.Cost([]byte(s.Auth.PasswordHash)); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: auth.password_hash: %v", ErrInvalid, cerr))
		}
	}
	return err
}

// Level returns the configured log level, debug if verbose is set.
func (s Settings) Level(verbose bool) zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Logger builds a production zap logger at the configured level.
func (s Settings) Logger(verbose bool) (*zap.Logger, error) {
	conf := zap.NewProductionConfig()
	conf.Level = zap.NewAtomicLevelAt(s.Level(verbose))
	conf.Encoding = "console"
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return conf.Build()
}
