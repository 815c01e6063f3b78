// Package supervisor starts, stops and restarts a server that records its own
// pid in a pid file.
//
// # Security Model
//
// Commands are executed via "sh -c" and the configured cli override is
// inserted verbatim. Configuration files therefore have the same trust level
// as Makefiles or Procfiles - they can execute arbitrary code. Only use
// configuration files from trusted sources.
package supervisor

import (
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// Launcher runs a launch command to completion. The command is expected to
// background the server itself, so Launch returns as soon as the shell does.
type Launcher interface {
	// Launch runs command with env applied. isolate asks for the caller's
	// dependency sandbox to be stripped. It reports whether the shell
	// spawned and exited zero.
	Launch(command string, env map[string]*string, isolate bool) bool
}

// LauncherConfig configures a ShellLauncher
type LauncherConfig struct {
	// SandboxActive tells the launcher the caller runs inside a Bundler
	// sandbox. It is resolved once by the caller; the launcher never
	// inspects the environment for it.
	SandboxActive bool

	// BaseEnv is the environment the command starts from. nil means the
	// current process environment at launch time.
	BaseEnv []string

	// Env is merged over BaseEnv, below the per-launch overrides.
	Env map[string]string

	// Output receives the server's stdout and stderr. It must be an
	// *os.File: with any other writer exec copies through a pipe and Launch
	// would block until the backgrounded server exits. nil discards output.
	Output *os.File

	// Shell runs the command string. Defaults to /bin/sh.
	Shell string
}

// ShellLauncher implements Launcher using os/exec
type ShellLauncher struct {
	config LauncherConfig
	logger *slog.Logger
}

// NewShellLauncher creates a new ShellLauncher
func NewShellLauncher(config LauncherConfig, logger *slog.Logger) *ShellLauncher {
	if config.Shell == "" {
		config.Shell = "/bin/sh"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShellLauncher{config: config, logger: logger}
}

// Launch runs command through the shell and waits for the shell to exit
func (l *ShellLauncher) Launch(command string, env map[string]*string, isolate bool) bool {
	cmd := exec.Command(l.config.Shell, "-c", command)
	cmd.Env = l.environ(env, isolate)
	cmd.Stdout = l.config.Output
	cmd.Stderr = l.config.Output

	// New process group so terminal signals aimed at us do not reach the
	// server; it is only stopped through its pid file.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	l.logger.Debug("launching server", "command", command, "isolated", isolate && l.config.SandboxActive)

	if err := cmd.Run(); err != nil {
		l.logger.Warn("launch command failed", "command", command, "error", err)
		return false
	}
	return true
}

func (l *ShellLauncher) environ(env map[string]*string, isolate bool) []string {
	base := l.config.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	if isolate && l.config.SandboxActive {
		base = WithoutBundlerEnv(base)
	}
	return applyEnv(base, l.config.Env, env)
}

// InBundlerSandbox reports whether env looks like it was prepared by
// Bundler. Callers use it once, at startup, to fill
// LauncherConfig.SandboxActive.
func InBundlerSandbox(env []string) bool {
	vars := envMap(env)
	_, ok := vars["BUNDLE_GEMFILE"]
	return ok
}
