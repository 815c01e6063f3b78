package supervisor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charliek/railsvisor/internal/config"
	"github.com/charliek/railsvisor/internal/constants"
)

// BuildCommand returns the shell command that launches the server in the
// background from the application root. Precedence: the cli override, then
// zeus, then rails server. Every form passes the pid file.
func BuildCommand(cfg *config.Config) string {
	var command string
	switch {
	case cfg.CLI != "":
		command = cliCommand(cfg)
	case cfg.Zeus:
		command = zeusCommand(cfg)
	default:
		command = railsCommand(cfg)
	}
	return fmt.Sprintf(`sh -c 'cd "%s" && %s &'`, cfg.Root, command)
}

// ServerOptions returns the rails server flags for cfg. Unset values are
// skipped rather than emitted empty.
func ServerOptions(cfg *config.Config) string {
	var opts []string
	if cfg.Daemon {
		opts = append(opts, "-d")
	}
	if cfg.Debugger {
		opts = append(opts, "-u")
	}
	if cfg.Environment != "" {
		opts = append(opts, "-e", cfg.Environment)
	}
	if cfg.PIDFile != "" {
		opts = append(opts, "--pid", quote(cfg.PIDFile))
	}
	if cfg.Host != "" {
		opts = append(opts, "-b", cfg.Host)
	}
	if cfg.Port > 0 {
		opts = append(opts, "-p", strconv.Itoa(cfg.Port))
	}
	if cfg.Server != "" {
		opts = append(opts, cfg.Server)
	}
	return strings.Join(opts, " ")
}

func cliCommand(cfg *config.Config) string {
	return cfg.CLI + " --pid " + quote(cfg.PIDFile)
}

func zeusCommand(cfg *config.Config) string {
	plan := cfg.ZeusPlan
	if plan == "" {
		plan = constants.DefaultZeusPlan
	}
	return joinNonEmpty(constants.ZeusCommand, plan, ServerOptions(cfg))
}

func railsCommand(cfg *config.Config) string {
	return joinNonEmpty(constants.ServerCommand, ServerOptions(cfg))
}

func quote(s string) string {
	return `"` + s + `"`
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
