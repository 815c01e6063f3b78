package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

const (
	testAPIPort = 15556
	testAPIAddr = "http://127.0.0.1:15556"
)

// fakeServer stands in for rails server: it writes its pid to the path
// following --pid and sleeps
const fakeServer = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --pid) pidfile="$2"; shift ;;
  esac
  shift
done
mkdir -p "$(dirname "$pidfile")"
echo $$ > "$pidfile"
while true; do sleep 1; done
`

// StatusResponse mirrors GET /api/v1/status
type StatusResponse struct {
	Status  string `json:"status"`
	PID     int    `json:"pid"`
	Alive   bool   `json:"alive"`
	PIDFile string `json:"pid_file"`
}

// ActionResponse mirrors the lifecycle endpoints
type ActionResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	PID     int    `json:"pid"`
}

// buildBinary builds the railsvisor binary and returns its path
func buildBinary(t *testing.T) string {
	t.Helper()

	// Get project root (two directories up from test/integration)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	projectRoot := filepath.Join(wd, "..", "..")

	binary := filepath.Join(t.TempDir(), "railsvisor")

	cmd := exec.Command("go", "build", "-o", binary, "./cmd/railsvisor")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, output)
	}

	return binary
}

// setupApp writes the fake server and a config into a temp application
// root and returns the root and config path
func setupApp(t *testing.T, extraConfig string) (string, string) {
	t.Helper()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "fake_server.sh"), []byte(fakeServer), 0755); err != nil {
		t.Fatalf("failed to write fake server: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "config"), 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configPath := filepath.Join(root, "railsvisor.yaml")
	content := `
environment: test
port: 3999
timeout: 2
cli: sh ./fake_server.sh
` + extraConfig
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return root, configPath
}

// outputFile returns a file to use as a child's stdout. Backgrounded
// servers inherit it, so it must not be a pipe or Wait would block.
func outputFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "output-*.log")
	if err != nil {
		t.Fatalf("failed to create output file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// runRailsvisor runs a command to completion and returns its output
func runRailsvisor(t *testing.T, binary, dir string, args ...string) (string, error) {
	t.Helper()

	out := outputFile(t)
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := cmd.Run()

	data, err := os.ReadFile(out.Name())
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return string(data), runErr
}

// startRailsvisor starts a long running command
func startRailsvisor(t *testing.T, binary, dir string, args ...string) *exec.Cmd {
	t.Helper()

	out := outputFile(t)
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start railsvisor: %v", err)
	}
	return cmd
}

// killRailsvisor forcefully kills the railsvisor process
func killRailsvisor(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
		cmd.Wait()
	}
}

// killServer kills a fake server left behind by a failed test
func killServer(pidFile string) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return
	}
	if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid > 0 {
		if p, err := os.FindProcess(pid); err == nil {
			p.Kill()
		}
	}
}

// waitForAPI waits for the API to be ready
func waitForAPI(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("API did not become ready within %v", timeout)
}

// waitForStatus polls the status endpoint until cond holds
func waitForStatus(t *testing.T, addr string, timeout time.Duration, cond func(StatusResponse) bool) StatusResponse {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var last StatusResponse
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/api/v1/status")
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&last)
			resp.Body.Close()
			if err == nil && cond(last) {
				return last
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("status condition not met within %v (last: %+v)", timeout, last)
	return StatusResponse{}
}

// waitForRemoval waits for path to disappear
func waitForRemoval(t *testing.T, path string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("%s still exists after %v", path, timeout)
}

// post sends an empty POST request
func post(addr, path string) (*http.Response, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	return client.Post(addr+path, "application/json", nil)
}

// requireNoError fails the test if err is not nil
func requireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// pidFilePath returns the default pid file for the test environment
func pidFilePath(root string) string {
	return filepath.Join(root, "tmp", "pids", "test.pid")
}

// skipShort skips the test if -short flag is provided
func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func apiConfig() string {
	return fmt.Sprintf(`
api:
  port: %d
watch:
  paths: [config]
  debounce: 100ms
`, testAPIPort)
}
