// Package store defines the boundary to the external document store that
// holds orders, workers and routes.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is one schemaless document keyed by field name.
type Record = map[string]any

// Store is the polled, eventually consistent source of truth. It offers no
// transactions; callers re-read before writing to detect conflicts.
type Store interface {
	// List returns every record of collection sorted by id.
	List(ctx context.Context, collection string) ([]Record, error)
	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Record, error)
	// Merge updates the given fields. A nil value removes the field.
	Merge(ctx context.Context, collection, id string, fields Record) error
	// Set replaces the whole record.
	Set(ctx context.Context, collection, id string, rec Record) error
	// Delete removes the record. Missing records are not an error.
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// IDField is the record key holding the document id. Records written through
// Set and Merge always carry it.
const IDField = "_id"
