// Package memory provides an in-process document store for local development and tests.
package memory

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"example.com/activitytimer/internal/domain"
)

type entry struct {
	fields domain.Fields
	seq    int64
}

// Store keeps documents in maps keyed by collection and id.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]entry
	seq         int64
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{collections: make(map[string]map[string]entry)}
}

// Query implements domain.DocumentStore. Results are returned in insertion order.
func (s *Store) Query(ctx context.Context, collection string, filters domain.Fields) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		doc domain.Document
		seq int64
	}
	hits := make([]hit, 0)
	for id, e := range s.collections[collection] {
		if !matches(e.fields, filters) {
			continue
		}
		hits = append(hits, hit{doc: domain.Document{ID: id, Fields: clone(e.fields)}, seq: e.seq})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })

	docs := make([]domain.Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, h.doc)
	}
	return docs, nil
}

// Insert implements domain.DocumentStore.
func (s *Store) Insert(ctx context.Context, collection string, fields domain.Fields) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]entry)
		s.collections[collection] = docs
	}
	s.seq++
	id := uuid.NewString()
	docs[id] = entry{fields: clone(fields), seq: s.seq}
	return domain.Document{ID: id, Fields: clone(fields)}, nil
}

// Update implements domain.DocumentStore with merge-patch semantics.
func (s *Store) Update(ctx context.Context, collection, id string, fields domain.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.collections[collection][id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	for k, v := range fields {
		e.fields[k] = v
	}
	s.collections[collection][id] = e
	return nil
}

// Delete implements domain.DocumentStore.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func matches(fields, filters domain.Fields) bool {
	for k, want := range filters {
		got, ok := fields[k]
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func clone(in domain.Fields) domain.Fields {
	out := make(domain.Fields, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
