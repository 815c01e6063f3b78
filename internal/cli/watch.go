package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charliek/railsvisor/internal/api"
	"github.com/charliek/railsvisor/internal/config"
	"github.com/charliek/railsvisor/internal/constants"
	"github.com/charliek/railsvisor/internal/notify"
	"github.com/charliek/railsvisor/internal/reloader"
	"github.com/charliek/railsvisor/internal/supervisor"
	"github.com/charliek/railsvisor/internal/watcher"
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the server and restart it when files change",
	Long: `Start the server and restart it whenever a watched file changes.

Watched paths, ignore patterns and the debounce interval come from the
watch section of the config. When api.port is set, the control API is
served alongside. INT or TERM stops the server and exits.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// isLocalhost checks if the host is a localhost address
func isLocalhost(host string) bool {
	return host == "" || host == "127.0.0.1" || host == "localhost" || host == "::1"
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	notifier := notify.NewTerminal(out)
	sup, err := newSupervisor(cfg, notifier)
	if err != nil {
		return err
	}
	r := reloader.New(sup, cfg, notifier, slog.Default())

	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return err
	}
	w, err := watcher.New(watcher.Config{
		Root:     cfg.Root,
		Paths:    cfg.Watch.Paths,
		Ignore:   cfg.Watch.Ignore,
		Debounce: debounce,
	}, func(paths []string) { r.RunOnChange(paths) }, slog.Default())
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var apiServer *api.Server
	if cfg.APIEnabled() {
		apiServer = startAPI(out, cfg, sup, path)
	}

	r.Start()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
	case err := <-watchErr:
		if err != nil {
			slog.Error("watcher stopped", "error", err)
		}
	}
	cancel()

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("API shutdown failed", "error", err)
		}
	}

	if !r.Stop() {
		return fmt.Errorf("server did not stop cleanly")
	}
	return nil
}

// startAPI serves the control API in the background
func startAPI(out io.Writer, cfg *config.Config, sup *supervisor.Supervisor, configFile string) *api.Server {
	authEnabled := cfg.API.Token != ""
	if !authEnabled && !isLocalhost(cfg.API.Host) {
		fmt.Fprintf(os.Stderr, "WARNING: No api.token while binding to %s\n", cfg.API.Host)
		fmt.Fprintf(os.Stderr, "         Any network client can control this server.\n")
	}

	handlers := api.NewHandlers(sup, configFile, slog.Default())
	apiServer := api.NewServer(api.ServerConfig{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		AuthEnabled: authEnabled,
		Token:       cfg.API.Token,
	}, handlers)

	auth := "no auth"
	if authEnabled {
		auth = "auth enabled"
	}
	fmt.Fprintf(out, "API server: http://%s (%s)\n", apiServer.Addr(), auth)

	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server error", "error", err)
		}
	}()

	return apiServer
}
