package configloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string        `yaml:"name"`
	Port    int           `env:"TEST_LOADER_PORT"    yaml:"port"`
	Debug   bool          `env:"TEST_LOADER_DEBUG"   yaml:"debug"`
	Timeout time.Duration `env:"TEST_LOADER_TIMEOUT" yaml:"timeout"`
	Score   float64       `env:"TEST_LOADER_SCORE"   yaml:"score"`
	Nested  struct {
		Host string `env:"TEST_LOADER_HOST" yaml:"host"`
	} `yaml:"nested"`
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_ReadsYAML(t *testing.T) {
	path := writeConfig(t, `
name: feedguard
port: 8094
score: 0.45
nested:
  host: localhost
`)

	cfg, err := Load[testConfig](path)
	require.NoError(t, err)

	assert.Equal(t, "feedguard", cfg.Name)
	assert.Equal(t, 8094, cfg.Port)
	assert.InDelta(t, 0.45, cfg.Score, 0.0001)
	assert.Equal(t, "localhost", cfg.Nested.Host)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("TEST_LOADER_PORT", "9999")
	t.Setenv("TEST_LOADER_DEBUG", "yes")
	t.Setenv("TEST_LOADER_TIMEOUT", "5s")
	t.Setenv("TEST_LOADER_HOST", "db.internal")

	path := writeConfig(t, `
port: 8094
debug: false
nested:
  host: localhost
`)

	cfg, err := Load[testConfig](path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "db.internal", cfg.Nested.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load[testConfig](filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "port: [not an int")

	_, err := Load[testConfig](path)
	require.Error(t, err)
}

func TestLoadWithDefaults_EnvWinsOverDefaults(t *testing.T) {
	t.Setenv("TEST_LOADER_PORT", "7000")

	path := writeConfig(t, "name: feedguard\n")

	cfg, err := LoadWithDefaults(path, func(c *testConfig) {
		if c.Port == 0 {
			c.Port = 8094
		}
	})
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
}

func TestLoadWithDefaults_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "name: feedguard\n")

	cfg, err := LoadWithDefaults(path, func(c *testConfig) {
		if c.Port == 0 {
			c.Port = 8094
		}
	})
	require.NoError(t, err)

	assert.Equal(t, 8094, cfg.Port)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "/etc/feedguard/config.yml")
	assert.Equal(t, "/etc/feedguard/config.yml", GetConfigPath("config.yml"))
}
