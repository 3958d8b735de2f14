package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cortx-dev/cortx-run/internal/logging"
)

// EnvPrefix is the prefix for environment overrides, e.g. CORTX_RUN_GRACE_PERIOD.
const EnvPrefix = "CORTX_RUN"

// DefaultInstallHint is printed when a required tool is missing.
const DefaultInstallHint = "Please install Node.js from https://nodejs.org/"

// Config is the complete launcher configuration
type Config struct {
	Compute   ChildConfig `mapstructure:"compute" yaml:"compute" json:"compute"`
	DevServer ChildConfig `mapstructure:"dev_server" yaml:"dev_server" json:"dev_server"`

	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period" json:"grace_period"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout" json:"stop_timeout"`

	// Preflight resolves both commands on PATH before anything is spawned.
	Preflight   bool   `mapstructure:"preflight" yaml:"preflight" json:"preflight"`
	InstallHint string `mapstructure:"install_hint" yaml:"install_hint" json:"install_hint"`

	// Group, when set, is the system group the launcher switches to before
	// spawning (e.g. "docker" for access to the container runtime socket).
	Group string `mapstructure:"group" yaml:"group" json:"group"`

	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
}

// ChildConfig describes one child process
type ChildConfig struct {
	Name    string   `mapstructure:"name" yaml:"name" json:"name"`
	Command string   `mapstructure:"command" yaml:"command" json:"command"`
	Args    []string `mapstructure:"args" yaml:"args" json:"args"`
	Dir     string   `mapstructure:"dir" yaml:"dir" json:"dir"`
	Env     []string `mapstructure:"env" yaml:"env,omitempty" json:"env,omitempty"` // KEY=VALUE, appended to the inherited environment
}

// LogConfig controls the launcher's own logging
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json" json:"json"`
	Dir   string `mapstructure:"dir" yaml:"dir" json:"dir"` // empty = stdout only
}

// MetricsConfig controls the optional /metrics and /health endpoint
type MetricsConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr" json:"addr"` // empty = disabled
	SampleInterval time.Duration `mapstructure:"sample_interval" yaml:"sample_interval" json:"sample_interval"`
}

// TracingConfig controls OpenTelemetry export
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"` // empty = disabled
	ServiceName string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
}

// Default returns the built-in configuration: npx tsx in ./cortx-compute,
// then npm run dev in ./cortx, one second apart.
func Default() *Config {
	return &Config{
		Compute: ChildConfig{
			Name:    "compute",
			Command: "npx",
			Args:    []string{"tsx", "index.ts", "-y"},
			Dir:     "./cortx-compute",
		},
		DevServer: ChildConfig{
			Name:    "dev-server",
			Command: "npm",
			Args:    []string{"run", "dev"},
			Dir:     "./cortx",
		},
		GracePeriod: time.Second,
		StopTimeout: 10 * time.Second,
		Preflight:   runtime.GOOS == "windows",
		InstallHint: DefaultInstallHint,
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			SampleInterval: 5 * time.Second,
		},
		Tracing: TracingConfig{
			ServiceName: "cortx-run",
		},
	}
}

// SetDefaults registers every key with viper so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()

	for prefix, child := range map[string]ChildConfig{"compute": d.Compute, "dev_server": d.DevServer} {
		v.SetDefault(prefix+".name", child.Name)
		v.SetDefault(prefix+".command", child.Command)
		v.SetDefault(prefix+".args", child.Args)
		v.SetDefault(prefix+".dir", child.Dir)
		v.SetDefault(prefix+".env", []string{})
	}

	v.SetDefault("grace_period", d.GracePeriod)
	v.SetDefault("stop_timeout", d.StopTimeout)
	v.SetDefault("preflight", d.Preflight)
	v.SetDefault("install_hint", d.InstallHint)
	v.SetDefault("group", d.Group)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.sample_interval", d.Metrics.SampleInterval)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// BindEnv wires CORTX_RUN_* environment variables into v
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for values the launcher cannot work with
func (c *Config) Validate() error {
	var errs []error

	for _, child := range []struct {
		key string
		cfg ChildConfig
	}{{"compute", c.Compute}, {"dev_server", c.DevServer}} {
		if strings.TrimSpace(child.cfg.Command) == "" {
			errs = append(errs, fmt.Errorf("%s.command is required", child.key))
		}
		if strings.TrimSpace(child.cfg.Name) == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", child.key))
		}
		for _, kv := range child.cfg.Env {
			if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
				errs = append(errs, fmt.Errorf("%s.env entry %q is not KEY=VALUE", child.key, kv))
			}
		}
	}
	if c.Compute.Name != "" && c.Compute.Name == c.DevServer.Name {
		errs = append(errs, fmt.Errorf("compute and dev_server must have distinct names (both %q)", c.Compute.Name))
	}

	if c.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("grace_period must not be negative, got %s", c.GracePeriod))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop_timeout must be positive, got %s", c.StopTimeout))
	}
	if _, ok := logging.LookupLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	if c.Metrics.Addr != "" && c.Metrics.SampleInterval <= 0 {
		errs = append(errs, fmt.Errorf("metrics.sample_interval must be positive when metrics are enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RenderYAML renders the config as a YAML document
func (c *Config) RenderYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default configuration to path.
// An existing file is never overwritten.
func WriteDefault(path string) error {
	data, err := Default().RenderYAML()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("config file %s already exists", path)
		}
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
