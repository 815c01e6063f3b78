package supervisor

import (
	"strings"

	"github.com/charliek/railsvisor/internal/config"
	"github.com/charliek/railsvisor/internal/constants"
)

// bundlerNilMarker is what Bundler stores in BUNDLER_ORIG_* for variables
// that were unset before it started.
const bundlerNilMarker = "BUNDLER_ENVIRONMENT_PRESERVER_INTENTIONALLY_NIL"

const bundlerOrigPrefix = "BUNDLER_ORIG_"

// Environment returns the application environment override for the launch.
// It always holds exactly one key. A nil value means the variable is removed
// from the child's environment, which zeus mode uses so zeus picks the
// environment itself.
func Environment(cfg *config.Config) map[string]*string {
	if cfg.Zeus {
		return map[string]*string{constants.EnvVarName: nil}
	}
	env := cfg.Environment
	return map[string]*string{constants.EnvVarName: &env}
}

// usesExternalTool reports whether the launch command manages its own
// dependency context and must not inherit the Bundler sandbox.
func usesExternalTool(cfg *config.Config) bool {
	return cfg.CLI != "" || cfg.Zeus
}

// applyEnv returns base with overrides applied. A nil override removes the
// variable; later duplicates in base are collapsed.
func applyEnv(base []string, extra map[string]string, overrides map[string]*string) []string {
	vars := config.MergeEnv(envMap(base), extra)
	for k, v := range overrides {
		if v == nil {
			delete(vars, k)
			continue
		}
		vars[k] = *v
	}
	return envList(vars)
}

// WithoutBundlerEnv strips the Bundler sandbox from env: the values Bundler
// saved in BUNDLER_ORIG_* are restored, every BUNDLE_* and BUNDLER_*
// variable is dropped, and bundler/setup is removed from RUBYOPT.
func WithoutBundlerEnv(env []string) []string {
	vars := envMap(env)

	for k, v := range vars {
		if !strings.HasPrefix(k, bundlerOrigPrefix) {
			continue
		}
		name := strings.TrimPrefix(k, bundlerOrigPrefix)
		if v == bundlerNilMarker {
			delete(vars, name)
		} else {
			vars[name] = v
		}
	}

	for k := range vars {
		if strings.HasPrefix(k, "BUNDLE_") || strings.HasPrefix(k, "BUNDLER_") {
			delete(vars, k)
		}
	}

	if opt, ok := vars["RUBYOPT"]; ok {
		var kept []string
		for _, flag := range strings.Fields(opt) {
			if flag == "-rbundler/setup" {
				continue
			}
			kept = append(kept, flag)
		}
		if len(kept) == 0 {
			delete(vars, "RUBYOPT")
		} else {
			vars["RUBYOPT"] = strings.Join(kept, " ")
		}
	}

	return envList(vars)
}

func envMap(env []string) map[string]string {
	vars := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		vars[k] = v
	}
	return vars
}

func envList(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}
