package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charliek/railsvisor/internal/config"
	"github.com/charliek/railsvisor/internal/constants"
	"github.com/charliek/railsvisor/internal/domain"
	"github.com/charliek/railsvisor/internal/notify"
	"github.com/charliek/railsvisor/internal/supervisor"
	"github.com/spf13/cobra"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath string
	verbose    bool
	overrides  serverFlags
)

// serverFlags holds command line overrides for the server section of the
// config. They only apply when set explicitly.
type serverFlags struct {
	root        string
	environment string
	host        string
	port        int
	server      string
	pidFile     string
	timeout     int
	cli         string
	zeus        bool
	zeusPlan    string
	forceRun    bool
	daemon      bool
	debugger    bool
	envFile     string
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "railsvisor",
	Short: "Start, stop and restart a Rails server through its pid file",
	Long: `railsvisor launches a Rails server (or zeus, or any custom command) in the
background, waits for it to write its pid file, and stops it again with
INT followed by KILL. It supports:
  - One-shot start, stop, restart and status commands
  - Watching files and restarting the server on change
  - Killing an unmanaged process holding the port (force_run)
  - An optional HTTP control API with Prometheus metrics`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "railsvisor version %s\n", Version)
	},
}

func init() {
	// Persistent flags available to all subcommands
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", constants.DefaultConfigFile, "Config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	pf.StringVar(&overrides.root, "root", "", "Application root directory")
	pf.StringVarP(&overrides.environment, "environment", "e", "", "Application environment")
	pf.StringVarP(&overrides.host, "host", "b", "", "Address the server binds to")
	pf.IntVarP(&overrides.port, "port", "p", 0, "Port the server listens on")
	pf.StringVar(&overrides.server, "server", "", "Rack server name (puma, thin, ...)")
	pf.StringVar(&overrides.pidFile, "pid-file", "", "Pid file path")
	pf.IntVar(&overrides.timeout, "timeout", 0, "Seconds to wait for the pid file")
	pf.StringVar(&overrides.cli, "cli", "", "Custom launch command; --pid is appended")
	pf.BoolVar(&overrides.zeus, "zeus", false, "Launch through zeus")
	pf.StringVar(&overrides.zeusPlan, "zeus-plan", "", "Zeus plan to run")
	pf.BoolVar(&overrides.forceRun, "force-run", false, "Kill any process already listening on the port")
	pf.BoolVar(&overrides.daemon, "daemon", false, "Pass -d to rails server")
	pf.BoolVar(&overrides.debugger, "debugger", false, "Pass -u to rails server")
	pf.StringVar(&overrides.envFile, "env-file", "", "Env file loaded into the server environment")

	rootCmd.SetVersionTemplate("railsvisor version {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

// setupLogging installs the default slog logger on stderr
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the config file when there is one, applies flag
// overrides and resolves paths. A missing default config file is not an
// error; a missing explicit one is. The returned path is empty when no file
// was read.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	changed := cmd.Flags().Changed
	return resolveConfig(configPath, changed("config"), overrides, changed)
}

func resolveConfig(path string, explicit bool, flags serverFlags, changed func(string) bool) (*config.Config, string, error) {
	if !explicit {
		if found, err := config.FindConfigFile(filepath.Dir(path)); err == nil {
			path = found
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		if explicit || !errors.Is(err, domain.ErrConfigNotFound) {
			return nil, "", err
		}
		cfg = config.Default()
		path = ""
	}

	flags.apply(cfg, changed)

	baseDir := "."
	if path != "" {
		baseDir = filepath.Dir(path)
	}
	if err := cfg.Resolve(baseDir); err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

func (f serverFlags) apply(cfg *config.Config, changed func(string) bool) {
	if changed("root") {
		cfg.Root = f.root
	}
	if changed("environment") {
		cfg.Environment = f.environment
	}
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("server") {
		cfg.Server = f.server
	}
	if changed("pid-file") {
		cfg.PIDFile = f.pidFile
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if changed("cli") {
		cfg.CLI = f.cli
	}
	if changed("zeus") {
		cfg.Zeus = f.zeus
	}
	if changed("zeus-plan") {
		cfg.ZeusPlan = f.zeusPlan
	}
	if changed("force-run") {
		cfg.ForceRun = f.forceRun
	}
	if changed("daemon") {
		cfg.Daemon = f.daemon
	}
	if changed("debugger") {
		cfg.Debugger = f.debugger
	}
	if changed("env-file") {
		cfg.EnvFile = f.envFile
	}
}

// newSupervisor builds a supervisor whose server inherits this process's
// stdout and stderr
func newSupervisor(cfg *config.Config, notifier notify.Notifier) (*supervisor.Supervisor, error) {
	env, err := cfg.LoadEnv()
	if err != nil {
		return nil, err
	}

	launcher := supervisor.NewShellLauncher(supervisor.LauncherConfig{
		SandboxActive: supervisor.InBundlerSandbox(os.Environ()),
		Env:           env,
		Output:        os.Stdout,
	}, slog.Default())

	return supervisor.New(cfg, notifier, supervisor.WithLauncher(launcher))
}
