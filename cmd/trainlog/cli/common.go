package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ferrolab/trainlog/internal/config"
	"github.com/ferrolab/trainlog/internal/docstore"
	"github.com/ferrolab/trainlog/internal/logsave"
	"github.com/ferrolab/trainlog/internal/observe"
)

func newObserver() *observe.Observer {
	if jsonLogs {
		return observe.NewJSON(os.Stdout, verbose)
	}
	return observe.New(os.Stdout, verbose)
}

func resolveConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.FromEnv(), nil
}

func openStore(ctx context.Context, cfg config.Config) (docstore.Store, error) {
	switch backend {
	case "mongo":
		return docstore.NewMongoStore(ctx, cfg.URI, cfg.Database)
	case "sqlite":
		path := sqlitePath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve home directory for sqlite path: %w", err)
			}
			path = filepath.Join(home, ".trainlog", cfg.Database+".db")
		}
		return docstore.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown backend %q (use mongo or sqlite)", backend)
	}
}

// newSaver wires observer, store, and configuration. The returned cleanup
// closes the store connection.
func newSaver(ctx context.Context) (*logsave.Saver, func(), error) {
	obs := newObserver()

	cfg, err := resolveConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	saver := logsave.New(ctx, obs, store, cfg)
	cleanup := func() {
		if err := store.Close(ctx); err != nil {
			obs.Log().Warn().Err(err).Msg("failed to close store")
		}
		_ = obs.Close()
	}
	return saver, cleanup, nil
}

// readEntries loads one JSON object from the named file, or from stdin when
// path is "-" or empty.
func readEntries(path string) (map[string]any, error) {
	var data []byte
	var err error

	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	var entries map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse entries: %w", err)
	}
	return entries, nil
}
