package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/charliek/railsvisor/internal/domain"
	"github.com/charliek/railsvisor/internal/notify"
	"github.com/charliek/railsvisor/internal/reloader"
	"github.com/spf13/cobra"
)

// Status command flags
var statusJSON bool

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server and wait for its pid file",
	RunE:  runStart,
}

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the server recorded in the pid file",
	Long: `Stop the server recorded in the pid file.

Sends INT, waits for the pid file to disappear, then sends KILL and removes
the pid file. Does nothing when there is no pid file.`,
	RunE: runStop,
}

// restartCmd represents the restart command
var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop the server if running, then start it",
	RunE:  runRestart,
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pid file and whether the server is alive",
	Long: `Show the pid file and whether the server is alive.

Exits non-zero when no live server is recorded in the pid file.

Examples:
  railsvisor status         # Human readable
  railsvisor status --json  # Machine readable`,
	RunE: runStatus,
}

// commandCmd represents the command command
var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Print the launch command without running it",
	RunE:  runCommand,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commandCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sup, err := newSupervisor(cfg, notify.NewTerminal(os.Stderr))
	if err != nil {
		return err
	}

	if !sup.Start() {
		return domain.ErrServerNotStarted
	}

	pid, _ := sup.PID()
	fmt.Fprintf(cmd.OutOrStdout(), "Server started on port %d, pid %d\n", cfg.Port, pid)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sup, err := newSupervisor(cfg, notify.NewTerminal(os.Stderr))
	if err != nil {
		return err
	}

	stopped, err := sup.Stop()
	if err != nil {
		return err
	}
	if !stopped {
		return domain.ErrServerNotStopped
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
	return nil
}

func runRestart(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	notifier := notify.NewTerminal(cmd.OutOrStdout())
	sup, err := newSupervisor(cfg, notifier)
	if err != nil {
		return err
	}

	r := reloader.New(sup, cfg, notifier, nil)
	if !r.Reload(reloader.ActionRestart) {
		return domain.ErrServerNotStarted
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sup, err := newSupervisor(cfg, nil)
	if err != nil {
		return err
	}

	info := sup.Info()
	out := cmd.OutOrStdout()

	if statusJSON {
		if err := json.NewEncoder(out).Encode(info); err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}
	} else {
		printStatus(out, info, path)
	}

	if info.PID == 0 || !info.Alive {
		return domain.ErrServerNotRunning
	}
	return nil
}

// printStatus prints a status table
func printStatus(out io.Writer, info domain.ServerInfo, configFile string) {
	if configFile == "" {
		configFile = "(defaults)"
	}

	pid := "-"
	if info.PID > 0 {
		pid = fmt.Sprintf("%d", info.PID)
	}
	alive := "no"
	if info.Alive {
		alive = "yes"
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Config:\t%s\n", configFile)
	fmt.Fprintf(w, "Environment:\t%s\n", info.Environment)
	fmt.Fprintf(w, "Address:\t%s:%d\n", info.Host, info.Port)
	fmt.Fprintf(w, "PID file:\t%s\n", info.PIDFile)
	fmt.Fprintf(w, "PID:\t%s\n", pid)
	fmt.Fprintf(w, "Alive:\t%s\n", alive)
	w.Flush()
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sup, err := newSupervisor(cfg, nil)
	if err != nil {
		return err
	}

	printCommand(cmd.OutOrStdout(), sup.Command(), sup.Environment())
	return nil
}

// printCommand prints the environment overrides followed by the command
func printCommand(out io.Writer, command string, env map[string]*string) {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if v := env[name]; v != nil {
			fmt.Fprintf(out, "export %s=%s\n", name, *v)
		} else {
			fmt.Fprintf(out, "unset %s\n", name)
		}
	}
	fmt.Fprintln(out, command)
}
