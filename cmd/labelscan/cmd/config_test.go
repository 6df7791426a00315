package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "conf", "labelscan.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))

	out, _, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Contains(t, doc, "translation")
	assert.Contains(t, doc, "server")

	// the written file is accepted as configuration
	_, _, err = run(t, "--config", path, "config", "show")
	require.NoError(t, err)
}

func TestConfigInit_IgnoresBrokenConfig(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "labelscan.yaml"), []byte("log_level: [\n"), 0o600))

	_, _, err := run(t, "config", "init", filepath.Join(dir, "fresh.yaml"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "fresh.yaml"))
}

func TestConfigShow_Env(t *testing.T) {
	isolate(t)
	t.Setenv("LABELSCAN_TRANSLATION_MODEL", "env-model:7b")
	t.Setenv("LABELSCAN_BOT_TOKEN", "secret-token")

	out, _, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "env-model:7b")
	assert.NotContains(t, out, "secret-token")
}
