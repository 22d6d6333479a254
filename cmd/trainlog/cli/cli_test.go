package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ferrolab/trainlog/internal/config"
)

func TestCLI_Root(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"record", "metrics", "checkpoints", "config"} {
		if !names[want] {
			t.Errorf("expected %q subcommand to be registered", want)
		}
	}
}

func TestReadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	if err := os.WriteFile(path, []byte(`{"epoch": 1, "loss": 0.1}`), 0600); err != nil {
		t.Fatalf("failed to write entries file: %v", err)
	}

	entries, err := readEntries(path)
	if err != nil {
		t.Fatalf("readEntries failed: %v", err)
	}
	if entries["loss"] != 0.1 {
		t.Errorf("expected loss 0.1, got %v", entries["loss"])
	}

	if _, err := readEntries(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewSaverSQLiteWiring(t *testing.T) {
	t.Setenv(config.EnvTaskID, "cli-task")

	origBackend, origPath := backend, sqlitePath
	backend = "sqlite"
	sqlitePath = filepath.Join(t.TempDir(), "docs.db")
	defer func() { backend, sqlitePath = origBackend, origPath }()

	ctx := context.Background()
	saver, cleanup, err := newSaver(ctx)
	if err != nil {
		t.Fatalf("newSaver failed: %v", err)
	}
	defer cleanup()

	// A full round trip through the wired stack.
	saver.SaveLogs(ctx, map[string]any{"loss": 0.5})
}

func TestOpenStoreNoHomeDir(t *testing.T) {
	t.Setenv("HOME", "")

	origBackend, origPath := backend, sqlitePath
	backend = "sqlite"
	sqlitePath = ""
	defer func() { backend, sqlitePath = origBackend, origPath }()

	if _, err := openStore(context.Background(), config.Default()); err == nil {
		t.Error("expected error when the home directory cannot be resolved")
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	origBackend := backend
	backend = "carrier-pigeon"
	defer func() { backend = origBackend }()

	if _, err := openStore(context.Background(), config.Default()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
