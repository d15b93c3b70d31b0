package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4040, cfg.Network.Port)
	assert.Equal(t, "local", cfg.Output.Driver)
}

func TestLoadExpandsEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte(`
network:
  port: ${TEST_PORT}
state:
  save_path: /tmp/state
`), 0o644))

	t.Setenv("TEST_PORT", "5050")
	t.Setenv("STATE_SAVE_PATH", "/var/lib/adventured")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Network.Port)
	assert.Equal(t, "/var/lib/adventured", cfg.State.SavePath)
}

func TestSettingsElideHiddenFields(t *testing.T) {
	cfg := Default()
	cfg.Redis.Password = "secret"

	for _, s := range cfg.Settings() {
		assert.NotEqual(t, "redis.password", s.Name)
	}
}
