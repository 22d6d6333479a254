package logsave

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ferrolab/trainlog/internal/docstore"
)

func makeOutputDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.Mkdir(filepath.Join(dir, name), 0750); err != nil {
			t.Fatalf("failed to create checkpoint dir %s: %v", name, err)
		}
	}
	return dir
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestListCheckpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("NormalizesAndPersists", func(t *testing.T) {
		store := newFakeStore()
		s, _ := newTestSaver(store, "t-1")
		dir := makeOutputDir(t, "checkpoint-100", "checkpoint-step50", "other-dir")

		s.ListCheckpoints(ctx, dir)

		wantFS := []string{"checkpoint-step100", "checkpoint-step50", "other-dir"}
		gotFS := dirEntries(t, dir)
		for _, want := range wantFS {
			found := false
			for _, got := range gotFS {
				if got == want {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %s on disk after normalization, got %v", want, gotFS)
			}
		}

		docs := store.inserts["checkpoints"]
		if len(docs) != 1 {
			t.Fatalf("expected 1 inventory insert, got %d", len(docs))
		}
		doc := docs[0]
		if doc["task_id"] != "t-1" || doc["DeleteAt"] != 0 {
			t.Errorf("expected enriched inventory, got %v", doc)
		}
		wantList := []string{"checkpoint-step100", "checkpoint-step50"}
		if !reflect.DeepEqual(doc["checkpoints"], wantList) {
			t.Errorf("expected inventory %v, got %v", wantList, doc["checkpoints"])
		}
	})

	t.Run("SecondRunIsNoOp", func(t *testing.T) {
		store := newFakeStore()
		s, _ := newTestSaver(store, "t-1")
		dir := makeOutputDir(t, "checkpoint-100")

		s.ListCheckpoints(ctx, dir)
		s.ListCheckpoints(ctx, dir)

		if len(store.inserts["checkpoints"]) != 1 {
			t.Errorf("expected exactly 1 inventory insert, got %d", len(store.inserts["checkpoints"]))
		}
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		store := newFakeStore()
		s, buf := newTestSaver(store, "t-1")

		s.ListCheckpoints(ctx, filepath.Join(t.TempDir(), "does-not-exist"))

		if len(store.inserts["checkpoints"]) != 0 {
			t.Errorf("expected no insert for missing directory, got %d", len(store.inserts["checkpoints"]))
		}
		if strings.Contains(buf.String(), "telemetry write failed") {
			t.Errorf("expected missing directory to be a silent skip, got %q", buf.String())
		}
	})

	t.Run("NoTaskID", func(t *testing.T) {
		store := newFakeStore()
		s, _ := newTestSaver(store, "")
		dir := makeOutputDir(t, "checkpoint-100")

		s.ListCheckpoints(ctx, dir)

		if len(store.inserts["checkpoints"]) != 0 {
			t.Errorf("expected no insert without a task id, got %d", len(store.inserts["checkpoints"]))
		}
		if entries := dirEntries(t, dir); entries[0] != "checkpoint-100" {
			t.Errorf("expected no rename without a task id, got %v", entries)
		}
	})

	t.Run("ConcurrentIndexerWinsRace", func(t *testing.T) {
		store := newFakeStore()
		s, buf := newTestSaver(store, "t-1")
		dir := makeOutputDir(t, "checkpoint-step50")

		// An inventory already exists, but the pre-insert existence check is
		// blinded, like a concurrent indexer racing past it.
		if err := store.InsertOne(ctx, "checkpoints", docstore.Document{
			"task_id":     "t-1",
			"checkpoints": []string{"checkpoint-step50"},
			"DeleteAt":    0,
		}); err != nil {
			t.Fatalf("failed to seed inventory: %v", err)
		}
		store.findNotFound = true

		s.ListCheckpoints(ctx, dir)

		if len(store.inserts["checkpoints"]) != 1 {
			t.Errorf("expected the duplicate insert to be rejected, got %d documents", len(store.inserts["checkpoints"]))
		}
		if strings.Contains(buf.String(), "telemetry write failed") {
			t.Errorf("expected the duplicate to be treated as success, got %q", buf.String())
		}
	})

	t.Run("EmptyDirectoryStoresEmptyInventory", func(t *testing.T) {
		store := newFakeStore()
		s, _ := newTestSaver(store, "t-1")
		dir := makeOutputDir(t)

		s.ListCheckpoints(ctx, dir)

		docs := store.inserts["checkpoints"]
		if len(docs) != 1 {
			t.Fatalf("expected 1 inventory insert, got %d", len(docs))
		}
		if inventoryLen(docs[0]["checkpoints"]) != 0 {
			t.Errorf("expected empty inventory, got %v", docs[0]["checkpoints"])
		}
	})

	t.Run("ReindexAfterEmptyInventory", func(t *testing.T) {
		store := newFakeStore()
		s, buf := newTestSaver(store, "t-1")
		dir := makeOutputDir(t)

		// The task gets indexed before any checkpoint exists.
		s.ListCheckpoints(ctx, dir)

		// A checkpoint appears later; the empty inventory must not stick.
		if err := os.Mkdir(filepath.Join(dir, "checkpoint-100"), 0750); err != nil {
			t.Fatalf("failed to create checkpoint dir: %v", err)
		}
		s.ListCheckpoints(ctx, dir)

		docs := store.inserts["checkpoints"]
		if len(docs) != 1 {
			t.Fatalf("expected the inventory document to be replaced, got %d documents", len(docs))
		}
		wantList := []string{"checkpoint-step100"}
		if !reflect.DeepEqual(docs[0]["checkpoints"], wantList) {
			t.Errorf("expected inventory %v after re-index, got %v", wantList, docs[0]["checkpoints"])
		}
		if strings.Contains(buf.String(), "telemetry write failed") {
			t.Errorf("expected re-index to succeed, got %q", buf.String())
		}
	})

	t.Run("OutputPathIsAFile", func(t *testing.T) {
		store := newFakeStore()
		s, buf := newTestSaver(store, "t-1")
		path := filepath.Join(t.TempDir(), "output")
		if err := os.WriteFile(path, []byte("not a directory"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		s.ListCheckpoints(ctx, path)

		if len(store.inserts["checkpoints"]) != 0 {
			t.Errorf("expected no insert for a file path, got %d", len(store.inserts["checkpoints"]))
		}
		if !strings.Contains(buf.String(), "not a directory") {
			t.Errorf("expected the diagnostic to name the condition, got %q", buf.String())
		}
	})
}
