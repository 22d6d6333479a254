// Package docstore provides the document-store abstraction the recorder
// writes through: schemaless named collections supporting single-document
// inserts and exact-match single-field lookups.
package docstore

import (
	"context"
	"errors"
)

// Document is one schemaless record.
type Document = map[string]any

// ErrNotFound is returned by FindOne when no document matches the filter.
var ErrNotFound = errors.New("docstore: document not found")

// ErrDuplicate is returned by InsertOne when the document collides with a
// unique index. Callers relying on at-most-once semantics treat it as
// "someone else already wrote this".
var ErrDuplicate = errors.New("docstore: duplicate document")

// Store is the persistence interface shared by the Mongo and SQLite
// backends. Filters are exact matches on a single field; that is all the
// recorder needs.
type Store interface {
	InsertOne(ctx context.Context, collection string, doc Document) error
	FindOne(ctx context.Context, collection, field string, value any) (Document, error)

	// ReplaceOne overwrites the document matching the filter with doc,
	// inserting it when no document matches.
	ReplaceOne(ctx context.Context, collection, field string, value any, doc Document) error

	// EnsureUniqueIndex makes inserts that repeat field's value within the
	// collection fail with ErrDuplicate.
	EnsureUniqueIndex(ctx context.Context, collection, field string) error

	Close(ctx context.Context) error
}
