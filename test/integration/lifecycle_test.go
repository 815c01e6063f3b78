package integration

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestLifecycle_StartStatusStop(t *testing.T) {
	skipShort(t)

	binary := buildBinary(t)
	root, configPath := setupApp(t, "")
	pidFile := pidFilePath(root)
	defer killServer(pidFile)

	out, err := runRailsvisor(t, binary, root, "start", "-c", configPath)
	requireNoError(t, err, "start failed: "+out)
	if !strings.Contains(out, "Server started on port 3999") {
		t.Errorf("unexpected start output: %s", out)
	}
	if _, err := os.Stat(pidFile); err != nil {
		t.Fatalf("pid file missing after start: %v", err)
	}

	out, err = runRailsvisor(t, binary, root, "status", "--json", "-c", configPath)
	requireNoError(t, err, "status failed: "+out)
	var status StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("failed to decode status %q: %v", out, err)
	}
	if status.PID == 0 || !status.Alive {
		t.Errorf("expected a live pid, got %+v", status)
	}

	out, err = runRailsvisor(t, binary, root, "stop", "-c", configPath)
	requireNoError(t, err, "stop failed: "+out)
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("pid file should have been removed by stop")
	}

	if _, err := runRailsvisor(t, binary, root, "status", "-c", configPath); err == nil {
		t.Error("status should fail when nothing runs")
	}
}

func TestLifecycle_StopWithoutServer(t *testing.T) {
	skipShort(t)

	binary := buildBinary(t)
	root, configPath := setupApp(t, "")

	out, err := runRailsvisor(t, binary, root, "stop", "-c", configPath)
	requireNoError(t, err, "stop failed: "+out)
	if !strings.Contains(out, "Server stopped") {
		t.Errorf("unexpected stop output: %s", out)
	}
}

func TestLifecycle_Restart(t *testing.T) {
	skipShort(t)

	binary := buildBinary(t)
	root, configPath := setupApp(t, "")
	pidFile := pidFilePath(root)
	defer killServer(pidFile)

	out, err := runRailsvisor(t, binary, root, "start", "-c", configPath)
	requireNoError(t, err, "start failed: "+out)
	first, _ := os.ReadFile(pidFile)

	out, err = runRailsvisor(t, binary, root, "restart", "-c", configPath)
	requireNoError(t, err, "restart failed: "+out)
	if !strings.Contains(out, "Rails restarted") {
		t.Errorf("unexpected restart output: %s", out)
	}

	second, err := os.ReadFile(pidFile)
	requireNoError(t, err, "pid file missing after restart")
	if string(first) == string(second) {
		t.Errorf("expected a new pid after restart, still %s", second)
	}

	out, err = runRailsvisor(t, binary, root, "stop", "-c", configPath)
	requireNoError(t, err, "stop failed: "+out)
}

func TestLifecycle_Command(t *testing.T) {
	skipShort(t)

	binary := buildBinary(t)
	root, configPath := setupApp(t, "")

	out, err := runRailsvisor(t, binary, root, "command", "-c", configPath)
	requireNoError(t, err, "command failed: "+out)
	if !strings.Contains(out, "sh ./fake_server.sh --pid") {
		t.Errorf("unexpected command output: %s", out)
	}
	if !strings.Contains(out, "export RAILS_ENV=test") {
		t.Errorf("missing environment in output: %s", out)
	}
}
