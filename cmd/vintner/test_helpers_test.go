package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vintner/internal/batch"
	"vintner/internal/config"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	cfg        *config.Config
}

func setupCLITestEnv(t *testing.T, baseURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	if baseURL == "" {
		baseURL = "http://127.0.0.1:0"
	}
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ExportDir = filepath.Join(base, "exports")
	cfg.API.BaseURL = baseURL
	cfg.Drive.UserID = "test-user"
	cfg.Logging.Level = "error"

	configPath := filepath.Join(homeDir, ".config", "vintner", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, &cfg)

	return &cliTestEnv{baseDir: base, configPath: configPath, cfg: &cfg}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\nexport_dir = %q\n\n"+
			"[api]\nbase_url = %q\n\n[drive]\nuser_id = %q\n\n[logging]\nlevel = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.ExportDir,
		cfg.API.BaseURL,
		cfg.Drive.UserID,
		cfg.Logging.Level,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// seedBatch writes a batch directly into the env's store and releases the
// store lock again so a subsequent CLI invocation can take it.
func seedBatch(t *testing.T, env *cliTestEnv, items ...*batch.Item) *batch.Batch {
	t.Helper()
	store, err := batch.Open(env.cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	b, err := store.CreateBatch(context.Background())
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	b.Items = items
	if err := store.SaveBatch(context.Background(), b); err != nil {
		t.Fatalf("save batch: %v", err)
	}
	return b
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
