package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	paths := [][]string{
		{"serve"},
		{"migrate"},
		{"orders", "create"},
		{"orders", "show"},
		{"ingest"},
		{"version"},
	}
	for _, path := range paths {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Errorf("command %v not registered", path)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "webhooks dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	out, err := execute(t, "", "--database", dbPath, "migrate")
	if err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	if !strings.Contains(out, "up to date") {
		t.Errorf("migrate output = %q", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOrdersAndIngest(t *testing.T) {
	t.Setenv("WEBHOOKS_QUEUE_DRIVER", "memory")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")

	if _, err := execute(t, "", "--database", dbPath, "orders", "create", "TMZ-CLI"); err != nil {
		t.Fatalf("orders create error: %v", err)
	}

	payload := filepath.Join(dir, "delivered.json")
	body := `{"identifier":"TMZ-CLI","state":"delivered","delivered_at":"2026-03-01T12:00:00Z",
		"history":[{"type":"pick_up","recorded_at":"2026-03-01T10:00:00Z"}]}`
	if err := os.WriteFile(payload, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "--database", dbPath, "ingest", payload)
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("ingest output is not JSON: %v\n%s", err, out)
	}
	if result["outcome"] != "applied" {
		t.Errorf("outcome = %v, want applied", result["outcome"])
	}

	// A picked_up notification arriving late is stale.
	out, err = execute(t, `{"identifier":"TMZ-CLI","state":"picked_up","picked_up_at":"2026-03-01T10:00:00Z"}`,
		"--database", dbPath, "ingest", "-")
	if err != nil {
		t.Fatalf("ingest from stdin error: %v", err)
	}
	if !strings.Contains(out, `"outcome": "stale"`) {
		t.Errorf("stdin ingest output = %s", out)
	}

	out, err = execute(t, "", "--database", dbPath, "orders", "show", "TMZ-CLI")
	if err != nil {
		t.Fatalf("orders show error: %v", err)
	}
	var view struct {
		State string `json:"current_state"`
		Logs  []struct {
			State string `json:"state"`
		} `json:"logs"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("show output is not JSON: %v", err)
	}
	if view.State != "delivered" {
		t.Errorf("current_state = %s, want delivered", view.State)
	}
	if len(view.Logs) != 2 || view.Logs[0].State != "picked_up" {
		t.Errorf("logs = %+v, want backfilled picked_up then delivered", view.Logs)
	}
}

func TestIngest_Errors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")

	if _, err := execute(t, `{"identifier":"nope","state":"delivered","delivered_at":"2026-03-01T12:00:00Z"}`,
		"--database", dbPath, "ingest", "-"); err == nil {
		t.Error("ingest of unknown order should fail")
	}
	if _, err := execute(t, `not json`, "--database", dbPath, "ingest", "-"); err == nil {
		t.Error("ingest of invalid payload should fail")
	}
	if _, err := execute(t, "", "--database", dbPath, "ingest", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("ingest of missing file should fail")
	}
}
