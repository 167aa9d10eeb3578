package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), DefaultPath), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "expt.yaml", `
reports:
  - docs/experiments.md
  - /abs/traffic_signs.md
database: ledger.db
listen: 127.0.0.1:9000
log_level: debug
`)
	s, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "docs/experiments.md"), "/abs/traffic_signs.md"}, s.Reports)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), s.Database)
	assert.Equal(t, filepath.Join(dir, "data"), s.DataDir)
	assert.Equal(t, "127.0.0.1:9000", s.Listen)
	assert.Equal(t, zapcore.DebugLevel, s.Level(false))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("EXPT_LISTEN", ":9999")
	t.Setenv("EXPT_LOG_LEVEL", "warn")
	s, err := Load(filepath.Join(t.TempDir(), DefaultPath), false)
	require.NoError(t, err)
	assert.Equal(t, ":9999", s.Listen)
	assert.Equal(t, zapcore.WarnLevel, s.Level(false))
	assert.Equal(t, zapcore.DebugLevel, s.Level(true))
}

func TestValidate(t *testing.T) {
	s := Default()
	s.Listen = ""
	s.LogLevel = "loud"
	s.Auth.User = "admin"
	s.Auth.PasswordHash = "secret"
	err := s.Validate()
	assert.ErrorIs(t, err, ErrInvalid)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	s = Default()
	s.Auth = Auth{User: "admin", PasswordHash: string(hash)}
	assert.NoError(t, s.Validate())

	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "listen: [1, 2\n")
	_, err = Load(path, true)
	assert.Error(t, err)
}
