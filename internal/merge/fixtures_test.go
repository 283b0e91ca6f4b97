package merge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/persistence/memory"
	"example.com/activitytimer/internal/store"
)

const owner = "owner-current"

var sess = domain.Session{OwnerID: owner}

// countingStore records the writes that reach the document store.
type countingStore struct {
	*memory.Store
	mu      sync.Mutex
	inserts map[string]int
	updates map[string]int
	failOn  string
}

func newCountingStore() *countingStore {
	return &countingStore{
		Store:   memory.NewStore(),
		inserts: make(map[string]int),
		updates: make(map[string]int),
	}
}

func (s *countingStore) Insert(ctx context.Context, collection string, fields domain.Fields) (domain.Document, error) {
	if s.failOn == collection {
		return domain.Document{}, errors.New("store unavailable")
	}
	s.mu.Lock()
	s.inserts[collection]++
	s.mu.Unlock()
	return s.Store.Insert(ctx, collection, fields)
}

func (s *countingStore) Update(ctx context.Context, collection, id string, fields domain.Fields) error {
	s.mu.Lock()
	s.updates[collection]++
	s.mu.Unlock()
	return s.Store.Update(ctx, collection, id, fields)
}

func (s *countingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.inserts {
		total += n
	}
	for _, n := range s.updates {
		total += n
	}
	return total
}

type fixture struct {
	docs *countingStore
	repo *store.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs := newCountingStore()
	return &fixture{docs: docs, repo: store.New(docs)}
}

func (f *fixture) seedActivity(t *testing.T, name string) {
	t.Helper()
	_, err := f.repo.InsertActivity(context.Background(), sess, domain.Activity{Name: name})
	require.NoError(t, err)
	f.reset()
}

func (f *fixture) seedRecord(t *testing.T, rec domain.Record) {
	t.Helper()
	_, err := f.repo.InsertRecord(context.Background(), sess, rec)
	require.NoError(t, err)
	f.reset()
}

func (f *fixture) reset() {
	f.docs.mu.Lock()
	defer f.docs.mu.Unlock()
	f.docs.inserts = make(map[string]int)
	f.docs.updates = make(map[string]int)
}

func (f *fixture) activityNames(t *testing.T) []string {
	t.Helper()
	acts, err := f.repo.ListActivities(context.Background(), owner)
	require.NoError(t, err)
	names := make([]string, 0, len(acts))
	for _, a := range acts {
		names = append(names, a.Name)
	}
	return names
}

func (f *fixture) records(t *testing.T, activity string) []domain.Record {
	t.Helper()
	recs, err := f.repo.ListRecords(context.Background(), owner, activity)
	require.NoError(t, err)
	return recs
}

func incomingRecord(activity, at string, secs float64, memo string) domain.Record {
	return domain.Record{ActivityName: activity, RecordedAt: at, ElapsedSeconds: secs, Memo: memo, OwnerID: "owner-anon"}
}
