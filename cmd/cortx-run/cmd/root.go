package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cortx-dev/cortx-run/internal/config"
)

var (
	cfgFile   string
	configErr error
)

// rootCmd represents the base command. Without a subcommand it runs the launcher.
var rootCmd = &cobra.Command{
	Use:   "cortx-run",
	Short: "Start the Cortx compute service and dev server together",
	Long: `cortx-run starts the compute service, waits for it to initialize, then
starts the web dev server. Both run until Ctrl+C, which terminates them together.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLauncher,
}

// ExitError carries a process exit status out of a command
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the command tree and returns the process exit status
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./cortx-run.yaml or $HOME/.cortx-run/config.yaml)")
	flags.Duration("grace-period", config.Default().GracePeriod, "time to wait after starting the compute service")
	flags.Duration("stop-timeout", config.Default().StopTimeout, "time to wait for a child to exit before killing it")
	flags.Bool("preflight", config.Default().Preflight, "verify required tools are on PATH before starting")
	flags.String("group", "", "system group to switch to before starting children")
	flags.String("metrics-addr", "", "address for /metrics and /health (empty disables)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "emit logs as JSON")

	bindFlags(viper.GetViper())
}

// bindFlags maps command-line flags onto config keys
func bindFlags(v *viper.Viper) {
	flags := rootCmd.PersistentFlags()
	for key, flag := range map[string]string{
		"grace_period": "grace-period",
		"stop_timeout": "stop-timeout",
		"preflight":    "preflight",
		"group":        "group",
		"metrics.addr": "metrics-addr",
		"log.level":    "log-level",
		"log.json":     "log-json",
	} {
		v.BindPFlag(key, flags.Lookup(flag))
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case fileExists("cortx-run.yaml"):
		viper.SetConfigFile("cortx-run.yaml")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".cortx-run"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}
		configErr = fmt.Errorf("failed to read config: %w", err)
	}
}

// loadConfig returns the effective configuration
func loadConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	return config.Load(viper.GetViper())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
