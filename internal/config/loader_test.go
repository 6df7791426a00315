package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// chdir switches into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeYAML(t *testing.T, path string, v any) {
	t.Helper()
	data, err := yaml.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	require.NotNil(t, loader)
	assert.Same(t, viper.GetViper(), loader.v)
}

func TestLoadWithNoConfigFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeYAML(t, filepath.Join(dir, "labelscan.yaml"), map[string]any{
		"log_level": "debug",
		"translation": map[string]any{
			"model":   "llama3.1:8b",
			"timeout": "30s",
		},
	})

	loader := NewLoaderWithViper(viper.New())
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "llama3.1:8b", cfg.Translation.Model)
	assert.Equal(t, 30*time.Second, cfg.Translation.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Translation.ProbeTimeout)
	assert.Equal(t, "labelscan.yaml", filepath.Base(loader.GetConfigFileUsed()))
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeYAML(t, path, map[string]any{
		"recognizer": map[string]any{
			"engine":     "tesseract",
			"models_dir": "/srv/models",
		},
		"server": map[string]any{
			"port": 9090,
			"rate_limit": map[string]any{
				"enabled":              true,
				"max_requests_per_day": 500,
			},
		},
		"bot": map[string]any{"token": "123:abc"},
	})

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tesseract", cfg.Recognizer.Engine)
	assert.Equal(t, "/srv/models", cfg.Recognizer.ModelsDir)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 500, cfg.Server.RateLimit.MaxRequestsPerDay)
	assert.Equal(t, 30, cfg.Server.RateLimit.RequestsPerMinute)
	assert.Equal(t, "123:abc", cfg.Bot.Token)
}

func TestLoadWithFile_Missing(t *testing.T) {
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestLoadWithFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeYAML(t, path, map[string]any{"batch": map[string]any{"workers": -3}})

	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFileWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, -3, cfg.Batch.Workers)
}

func TestLoadWithFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: [unterminated"), 0o600))

	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LABELSCAN_TRANSLATION_BASE_URL", "http://10.0.2.2:11434")
	t.Setenv("LABELSCAN_SERVER_PORT", "9999")
	t.Setenv("LABELSCAN_BOT_TOKEN", "42:secret")
	t.Setenv("LABELSCAN_TRANSLATION_ENABLED", "false")

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.2.2:11434", cfg.Translation.BaseURL)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "42:secret", cfg.Bot.Token)
	assert.False(t, cfg.Translation.Enabled)
}

func TestSetOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	writeYAML(t, path, map[string]any{"output": map[string]any{"format": "json"}})

	loader := NewLoaderWithViper(viper.New())
	loader.Set("output.format", "markdown")
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "markdown", cfg.Output.Format)
	assert.Equal(t, "markdown", loader.GetResolvedConfig()["output"].(map[string]any)["format"])
}

func TestBindPFlag(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LABELSCAN_BATCH_WORKERS", "3")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("workers", 4, "")
	fs.String("model", "", "")

	loader := NewLoaderWithViper(viper.New())
	require.NoError(t, loader.BindPFlag("batch.workers", fs.Lookup("workers")))
	require.NoError(t, loader.BindPFlag("translation.model", fs.Lookup("model")))

	// unset flags leave env and defaults in charge
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, DefaultConfig().Translation.Model, cfg.Translation.Model)

	require.NoError(t, fs.Parse([]string{"--workers=8", "--model=other:latest"}))
	cfg, err = loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, "other:latest", cfg.Translation.Model)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labelscan.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Translation.Model, cfg.Translation.Model)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, "/xdg/labelscan")
	assert.Equal(t, "/etc/labelscan", paths[len(paths)-1])
}

func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	NewLoaderWithViper(viper.New()).PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: LABELSCAN")
}
