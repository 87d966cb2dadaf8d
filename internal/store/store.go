// Package store persists tracked objects and their conjunction records. Two
// implementations share one interface: an in-memory store for tests and
// offline tooling, and a SQLite store for the long-running service.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/astra/astrashield/internal/conjunction"
	"github.com/astra/astrashield/internal/elements"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence surface of the pipeline. Objects are keyed by
// catalog id; conjunctions by the canonical (cat_low, cat_high) pair, where
// an upsert replaces the prior record for the pair.
type Store interface {
	ListObjects(ctx context.Context, limit int) ([]elements.Object, error)
	FindObject(ctx context.Context, catalogID int) (elements.Object, error)
	BulkUpsertObjects(ctx context.Context, objs []elements.Object) error

	ListConjunctions(ctx context.Context, since time.Time) ([]conjunction.Conjunction, error)
	BulkUpsertConjunctions(ctx context.Context, recs []conjunction.Conjunction) error
	UpsertConjunction(ctx context.Context, rec conjunction.Conjunction) error

	Ping(ctx context.Context) error
	Close() error
}
