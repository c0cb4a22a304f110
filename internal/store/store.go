// Package store provides the key-value/range store used for trade tapes
// and performance snapshots. Keys are segmented with '#' and records under
// a common prefix form an ordered, paginated range.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no record exists for a key.
var ErrNotFound = errors.New("store: key not found")

// Record is one stored key/value pair.
type Record struct {
	Key   string
	Value []byte
}

// QueryOptions controls a range query over a key prefix.
type QueryOptions struct {
	// Descending orders results newest-key-first when true.
	Descending bool

	// Limit caps the page size; 0 means the implementation default.
	Limit int

	// Cursor continues a previous query from its returned cursor.
	Cursor string
}

// QueryPage is one page of range-query results. An empty Cursor means the
// range is exhausted.
type QueryPage struct {
	Records []Record
	Cursor  string
}

// Store is the external key-value collaborator. Implementations must be
// safe for concurrent use; all writes are independent and append-only at
// the domain level (no read-modify-write).
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Query returns one page of records whose keys share prefix, ordered
	// lexicographically by key.
	Query(ctx context.Context, prefix string, opts QueryOptions) (QueryPage, error)

	// Put writes a record. A ttl of 0 stores the record without expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single record; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// BatchDelete removes a set of records in one round trip.
	BatchDelete(ctx context.Context, keys []string) error
}
