package logsave

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ferrolab/trainlog/internal/docstore"
)

const (
	checkpointPrefix = "checkpoint-"
	stepMarker       = "step"
)

// ListCheckpoints discovers the checkpoint directories under outputDir,
// normalizes their names on disk, and persists the inventory for the
// current task. It runs at most once per task: a stored non-empty inventory
// short-circuits, and the unique task_id index catches concurrent indexers
// that raced past the check. All failures are logged and absorbed.
func (s *Saver) ListCheckpoints(ctx context.Context, outputDir string) {
	s.report("list checkpoints", s.indexCheckpoints(ctx, outputDir))
}

func (s *Saver) indexCheckpoints(ctx context.Context, outputDir string) error {
	info, err := os.Stat(outputDir)
	if err != nil {
		s.obs.Log().Info().Str("dir", outputDir).Msg("output directory does not exist, skipping checkpoint listing")
		return nil
	}
	if !info.IsDir() {
		s.obs.Log().Info().Str("dir", outputDir).Msg("output path is not a directory, skipping checkpoint listing")
		return nil
	}
	if s.cfg.TaskID == "" {
		s.obs.Log().Info().Msg("no task id set, skipping checkpoint listing")
		return nil
	}

	ctx, span := s.obs.StartSpan(ctx, "logsave.list_checkpoints")
	defer span.End()

	// An empty stored inventory does not short-circuit: the task may have
	// been indexed before any checkpoint was written, and its document must
	// be replaced rather than re-inserted against the unique index.
	replaceExisting := false
	existing, err := s.store.FindOne(ctx, s.cfg.CheckpointsCollection, "task_id", s.cfg.TaskID)
	switch {
	case err == nil:
		if inventoryLen(existing["checkpoints"]) > 0 {
			s.obs.Log().Info().Str("task", s.cfg.TaskID).Msg("checkpoints already listed for task")
			return nil
		}
		replaceExisting = true
	case !errors.Is(err, docstore.ErrNotFound):
		return err
	}

	names, err := doublestar.Glob(os.DirFS(outputDir), checkpointPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", outputDir, err)
	}

	checkpoints := make([]string, 0, len(names))
	for _, name := range names {
		normalized, err := s.normalizeCheckpoint(outputDir, name)
		if err != nil {
			return err
		}
		checkpoints = append(checkpoints, normalized)
	}

	doc := docstore.Document{
		"task_id":     s.cfg.TaskID,
		"checkpoints": checkpoints,
		"DeleteAt":    0,
	}
	if replaceExisting {
		if err := s.store.ReplaceOne(ctx, s.cfg.CheckpointsCollection, "task_id", s.cfg.TaskID, doc); err != nil {
			return err
		}
	} else if err := s.store.InsertOne(ctx, s.cfg.CheckpointsCollection, doc); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			s.obs.Log().Info().Str("task", s.cfg.TaskID).Msg("inventory already written by a concurrent indexer")
			return nil
		}
		return err
	}

	s.obs.Log().Info().
		Str("task", s.cfg.TaskID).
		Int("count", len(checkpoints)).
		Msg("checkpoint inventory recorded")
	return nil
}

// normalizeCheckpoint renames a checkpoint directory on disk so its name
// carries the step marker after the prefix (checkpoint-100 →
// checkpoint-step100). Names already carrying the marker pass through.
func (s *Saver) normalizeCheckpoint(outputDir, name string) (string, error) {
	if strings.Contains(name, stepMarker) {
		return name, nil
	}

	renamed := checkpointPrefix + stepMarker + strings.TrimPrefix(name, checkpointPrefix)
	if err := os.Rename(filepath.Join(outputDir, name), filepath.Join(outputDir, renamed)); err != nil {
		return "", fmt.Errorf("failed to rename checkpoint %s: %w", name, err)
	}
	return renamed, nil
}

// inventoryLen reports the length of a stored checkpoint list regardless of
// the backend's slice representation ([]string, []any, bson arrays).
func inventoryLen(v any) int {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		return rv.Len()
	}
	return 0
}
