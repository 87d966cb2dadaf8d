package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/astra/astrashield/internal/conjunction"
	"github.com/astra/astrashield/internal/elements"
	"github.com/astra/astrashield/internal/metrics"
)

// Memory is an in-process Store. Snapshots returned by the read operations
// are copies; mutating them does not touch the stored records.
type Memory struct {
	mu           sync.RWMutex
	objects      map[int]elements.Object
	conjunctions map[[2]int]conjunction.Conjunction
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects:      map[int]elements.Object{},
		conjunctions: map[[2]int]conjunction.Conjunction{},
	}
}

func (m *Memory) ListObjects(ctx context.Context, limit int) ([]elements.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]elements.Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.objects[id])
	}
	metrics.RecordStoreOp("list_objects", nil)
	return out, nil
}

func (m *Memory) FindObject(ctx context.Context, catalogID int) (elements.Object, error) {
	if err := ctx.Err(); err != nil {
		return elements.Object{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[catalogID]
	if !ok {
		return elements.Object{}, ErrNotFound
	}
	return obj, nil
}

func (m *Memory) BulkUpsertObjects(ctx context.Context, objs []elements.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, obj := range objs {
		m.objects[obj.CatalogID] = obj
	}
	metrics.RecordStoreOp("upsert_objects", nil)
	return nil
}

func (m *Memory) ListConjunctions(ctx context.Context, since time.Time) ([]conjunction.Conjunction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]conjunction.Conjunction, 0, len(m.conjunctions))
	for _, rec := range m.conjunctions {
		if rec.CreatedAt.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CatLow != out[j].CatLow {
			return out[i].CatLow < out[j].CatLow
		}
		return out[i].CatHigh < out[j].CatHigh
	})
	metrics.RecordStoreOp("list_conjunctions", nil)
	return out, nil
}

func (m *Memory) BulkUpsertConjunctions(ctx context.Context, recs []conjunction.Conjunction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range recs {
		m.conjunctions[rec.Key()] = rec
	}
	metrics.RecordStoreOp("upsert_conjunctions", nil)
	return nil
}

func (m *Memory) UpsertConjunction(ctx context.Context, rec conjunction.Conjunction) error {
	return m.BulkUpsertConjunctions(ctx, []conjunction.Conjunction{rec})
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }
