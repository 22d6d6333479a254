package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore keeps documents as JSON bodies in a single table, one row per
// document. It backs local runs without a reachable document store and the
// package tests.
type SQLiteStore struct {
	db *sql.DB
}

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// NewSQLiteStore opens (or creates) the database file at dbPath. Pass
// ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and pooled
	// connections to :memory: would each see a separate database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			body TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) InsertOne(ctx context.Context, collection string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `INSERT INTO documents (collection, body) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, collection, string(body)); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceOne(ctx context.Context, collection, field string, value any, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `UPDATE documents SET body = ? WHERE collection = ? AND json_extract(body, '$.' || ?) = ?`
	res, err := s.db.ExecContext(ctx, query, string(body), collection, field, value)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to replace in %s: %w", collection, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to replace in %s: %w", collection, err)
	}
	if affected == 0 {
		return s.InsertOne(ctx, collection, doc)
	}
	return nil
}

// isUniqueViolation matches the driver's extended result codes for unique
// and primary-key constraint failures.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func (s *SQLiteStore) FindOne(ctx context.Context, collection, field string, value any) (Document, error) {
	query := `SELECT body FROM documents WHERE collection = ? AND json_extract(body, '$.' || ?) = ? LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, collection, field, value)

	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	// Index and filter names are interpolated into DDL; restrict them to
	// plain identifiers.
	if !identPattern.MatchString(collection) || !identPattern.MatchString(field) {
		return fmt.Errorf("invalid identifier for unique index: %s.%s", collection, field)
	}

	query := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_documents_%s_%s
			ON documents (json_extract(body, '$.%s'))
			WHERE collection = '%s'`,
		collection, field, field, collection,
	)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure unique index on %s.%s: %w", collection, field, err)
	}
	return nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}
