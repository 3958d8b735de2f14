package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "npx", cfg.Compute.Command)
	assert.Equal(t, []string{"tsx", "index.ts", "-y"}, cfg.Compute.Args)
	assert.Equal(t, "./cortx-compute", cfg.Compute.Dir)
	assert.Equal(t, "npm", cfg.DevServer.Command)
	assert.Equal(t, []string{"run", "dev"}, cfg.DevServer.Args)
	assert.Equal(t, "./cortx", cfg.DevServer.Dir)
	assert.Equal(t, time.Second, cfg.GracePeriod)
	assert.Equal(t, 10*time.Second, cfg.StopTimeout)
	assert.Equal(t, runtime.GOOS == "windows", cfg.Preflight)
	assert.Empty(t, cfg.Group)
	assert.Equal(t, DefaultInstallHint, cfg.InstallHint)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cortx-run.yaml")
	content := `
compute:
  command: node
  args: [server.js]
  env:
    - PORT=4000
grace_period: 250ms
group: docker
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "node", cfg.Compute.Command)
	assert.Equal(t, []string{"server.js"}, cfg.Compute.Args)
	assert.Equal(t, "./cortx-compute", cfg.Compute.Dir, "unset keys keep their defaults")
	assert.Equal(t, []string{"PORT=4000"}, cfg.Compute.Env)
	assert.Equal(t, 250*time.Millisecond, cfg.GracePeriod)
	assert.Equal(t, "docker", cfg.Group)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CORTX_RUN_GRACE_PERIOD", "3s")
	t.Setenv("CORTX_RUN_DEV_SERVER_COMMAND", "pnpm")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.GracePeriod)
	assert.Equal(t, "pnpm", cfg.DevServer.Command)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero grace period", func(c *Config) { c.GracePeriod = 0 }, false},
		{"negative grace period", func(c *Config) { c.GracePeriod = -time.Second }, true},
		{"zero stop timeout", func(c *Config) { c.StopTimeout = 0 }, true},
		{"empty compute command", func(c *Config) { c.Compute.Command = " " }, true},
		{"empty dev server name", func(c *Config) { c.DevServer.Name = "" }, true},
		{"duplicate names", func(c *Config) { c.DevServer.Name = c.Compute.Name }, true},
		{"malformed env entry", func(c *Config) { c.Compute.Env = []string{"NOVALUE"} }, true},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"metrics without interval", func(c *Config) {
			c.Metrics.Addr = ":9100"
			c.Metrics.SampleInterval = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteDefaultRoundTripsAndRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.GracePeriod)
	assert.Equal(t, "./cortx", cfg.DevServer.Dir)

	err = WriteDefault(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
