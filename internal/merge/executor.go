package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/observability"
)

// Repository is the typed data access the merge engine needs.
type Repository interface {
	ListActivities(ctx context.Context, ownerID string) ([]domain.Activity, error)
	ListRecords(ctx context.Context, ownerID, activityName string) ([]domain.Record, error)
	InsertActivity(ctx context.Context, sess domain.Session, act domain.Activity) (domain.Activity, error)
	InsertRecord(ctx context.Context, sess domain.Session, rec domain.Record) (domain.Record, error)
	UpdateMemo(ctx context.Context, recordID, memo string) error
}

// Dataset is one side of a merge.
type Dataset struct {
	Activities []domain.Activity
	Records    []domain.Record
}

// Empty reports whether the dataset carries nothing to merge.
func (d Dataset) Empty() bool {
	return len(d.Activities) == 0 && len(d.Records) == 0
}

// Names returns the activity names in order.
func (d Dataset) Names() []string {
	names := make([]string, 0, len(d.Activities))
	for _, a := range d.Activities {
		names = append(names, a.Name)
	}
	return names
}

// Warning identifies a record whose memo was concatenated instead of cleanly resolved.
type Warning struct {
	ActivityName   string  `json:"activity_name"`
	RecordedAt     string  `json:"recorded_at"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Result summarises one executed merge.
type Result struct {
	ActivitiesAdded int               `json:"activities_added"`
	RecordsAdded    int               `json:"records_added"`
	MemosUpdated    int               `json:"memos_updated"`
	Skipped         int               `json:"skipped"`
	Renamed         map[string]string `json:"renamed,omitempty"`
	Warnings        []Warning         `json:"warnings"`
}

// WriteError reports a failed write in the merge batch. Writes that already succeeded stay written.
type WriteError struct {
	Collection string
	Op         string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("merge %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ExecutorOption configures optional behaviour for the Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger overrides the executor logger.
func WithExecutorLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithWriteConcurrency bounds how many writes of a batch run at once; n <= 0 leaves it unbounded.
func WithWriteConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		e.concurrency = n
	}
}

// Executor plans and writes the merge of an incoming dataset into the current owner's data.
type Executor struct {
	repo        Repository
	logger      zerolog.Logger
	concurrency int
}

// NewExecutor constructs an Executor.
func NewExecutor(repo Repository, opts ...ExecutorOption) *Executor {
	e := &Executor{repo: repo, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type memoUpdate struct {
	recordID string
	memo     string
}

// batch is the set of writes planned for one merge, issued together once planning is done.
type batch struct {
	activities []domain.Activity
	records    []domain.Record
	memos      []memoUpdate
	warnings   []Warning
	renamed    map[string]string
	skipped    int
}

// Execute folds in into sess.OwnerID's namespace. currentNames are the owner's existing activity
// names; names in collisions reuse the existing activity instead of creating a renamed copy.
// Neither slice is modified.
func (e *Executor) Execute(ctx context.Context, sess domain.Session, in Dataset, currentNames, collisions []string) (*Result, error) {
	start := time.Now()

	b, err := e.plan(ctx, sess, in, currentNames, collisions)
	if err != nil {
		return nil, err
	}

	res, err := e.apply(ctx, sess, b)
	if err != nil {
		e.logger.Error().
			Str("evt.name", "merge.write_failed").
			Str("owner_id", sess.OwnerID).
			Err(err).
			Msg("merge batch failed; completed writes are kept")
		return res, err
	}

	observability.RecordMergeWrites(res.ActivitiesAdded, res.RecordsAdded, res.MemosUpdated, len(res.Warnings), time.Since(start))
	e.logger.Info().
		Str("evt.name", "merge.executed").
		Str("owner_id", sess.OwnerID).
		Int("activities_added", res.ActivitiesAdded).
		Int("records_added", res.RecordsAdded).
		Int("memos_updated", res.MemosUpdated).
		Int("skipped", res.Skipped).
		Int("warnings", len(res.Warnings)).
		Msg("merge batch written")
	return res, nil
}

func (e *Executor) plan(ctx context.Context, sess domain.Session, in Dataset, currentNames, collisions []string) (*batch, error) {
	taken := nameSet(currentNames)
	merging := nameSet(collisions)
	seen := make(map[string]struct{}, len(in.Activities))
	b := &batch{renamed: make(map[string]string)}

	byActivity := make(map[string][]domain.Record, len(in.Activities))
	for _, rec := range in.Records {
		byActivity[rec.ActivityName] = append(byActivity[rec.ActivityName], rec)
	}

	for _, act := range in.Activities {
		if _, dup := seen[act.Name]; dup {
			e.logger.Warn().Str("activity", act.Name).Msg("duplicate incoming activity name ignored")
			continue
		}
		seen[act.Name] = struct{}{}

		setName := act.Name
		if _, ok := merging[act.Name]; !ok {
			if !insertable(act) {
				dropped := len(byActivity[act.Name])
				b.skipped += 1 + dropped
				e.logger.Warn().
					Str("evt.name", "merge.activity_skipped").
					Str("activity", act.Name).
					Str("record_order", string(act.RecordOrder)).
					Int("records", dropped).
					Msg("incoming activity fails validation; its records are skipped with it")
				continue
			}
			setName = UniqueName(act.Name, taken)
			taken[setName] = struct{}{}
			b.activities = append(b.activities, domain.Activity{
				Name:        setName,
				OwnerID:     sess.OwnerID,
				RecordOrder: act.RecordOrder,
			})
			if setName != act.Name {
				b.renamed[act.Name] = setName
			}
		}

		incoming := byActivity[act.Name]
		if len(incoming) == 0 {
			continue
		}
		if err := e.planRecords(ctx, sess, b, setName, incoming); err != nil {
			return nil, err
		}
	}

	for name, recs := range byActivity {
		if _, ok := seen[name]; ok {
			continue
		}
		b.skipped += len(recs)
		e.logger.Warn().
			Str("evt.name", "merge.orphan_records").
			Str("activity", name).
			Int("count", len(recs)).
			Msg("incoming records reference no incoming activity")
	}
	return b, nil
}

// insertable reports whether the store would accept act as a new activity. An empty record order
// defaults to asc on insert.
func insertable(act domain.Activity) bool {
	if strings.TrimSpace(act.Name) == "" {
		return false
	}
	return act.RecordOrder == "" || act.RecordOrder.Valid()
}

// planRecords matches incoming records of one activity against the owner's existing records.
// The existing set is read once and held fixed for the whole loop.
func (e *Executor) planRecords(ctx context.Context, sess domain.Session, b *batch, setName string, incoming []domain.Record) error {
	existing, err := e.repo.ListRecords(ctx, sess.OwnerID, setName)
	if err != nil {
		return fmt.Errorf("load existing records for %q: %w", setName, err)
	}
	byKey := make(map[domain.RecordKey]domain.Record, len(existing))
	for _, rec := range existing {
		if _, ok := byKey[rec.Key()]; !ok {
			byKey[rec.Key()] = rec
		}
	}

	// pending holds memos already rewritten in this batch so two incoming copies of one record
	// reconcile against each other instead of against the stale stored memo.
	pending := make(map[string]int)
	for _, rec := range incoming {
		rec.ActivityName = setName
		matched, ok := byKey[rec.Key()]
		if !ok {
			rec.ID = ""
			rec.OwnerID = sess.OwnerID
			b.records = append(b.records, rec)
			continue
		}

		current := matched.Memo
		idx, queued := pending[matched.ID]
		if queued {
			current = b.memos[idx].memo
		}
		rc := ReconcileMemo(rec.Memo, current)
		if rc.Changed(current) {
			if queued {
				b.memos[idx].memo = rc.Memo
			} else {
				pending[matched.ID] = len(b.memos)
				b.memos = append(b.memos, memoUpdate{recordID: matched.ID, memo: rc.Memo})
			}
		}
		if rc.Warn {
			b.warnings = append(b.warnings, Warning{
				ActivityName:   setName,
				RecordedAt:     rec.RecordedAt,
				ElapsedSeconds: rec.ElapsedSeconds,
			})
		}
	}
	return nil
}

// apply issues every planned write concurrently and waits for all of them to settle.
func (e *Executor) apply(ctx context.Context, sess domain.Session, b *batch) (*Result, error) {
	var (
		activities, records, memos, skipped atomic.Int64
		eg                                  errgroup.Group
	)
	if e.concurrency > 0 {
		eg.SetLimit(e.concurrency)
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	fail := func(err error) error {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
		return err
	}

	for _, act := range b.activities {
		eg.Go(func() error {
			if _, err := e.repo.InsertActivity(ctx, sess, act); err != nil {
				if errors.Is(err, domain.ErrValidationSkipped) {
					skipped.Add(1)
					return nil
				}
				return fail(&WriteError{Collection: domain.CollectionActivities, Op: "insert", Err: err})
			}
			activities.Add(1)
			return nil
		})
	}
	for _, rec := range b.records {
		eg.Go(func() error {
			if _, err := e.repo.InsertRecord(ctx, sess, rec); err != nil {
				if errors.Is(err, domain.ErrValidationSkipped) {
					skipped.Add(1)
					return nil
				}
				return fail(&WriteError{Collection: domain.CollectionRecords, Op: "insert", Err: err})
			}
			records.Add(1)
			return nil
		})
	}
	for _, upd := range b.memos {
		eg.Go(func() error {
			if err := e.repo.UpdateMemo(ctx, upd.recordID, upd.memo); err != nil {
				return fail(&WriteError{Collection: domain.CollectionRecords, Op: "update", Err: err})
			}
			memos.Add(1)
			return nil
		})
	}

	waitErr := eg.Wait()

	res := &Result{
		ActivitiesAdded: int(activities.Load()),
		RecordsAdded:    int(records.Load()),
		MemosUpdated:    int(memos.Load()),
		Skipped:         b.skipped + int(skipped.Load()),
		Warnings:        b.warnings,
	}
	if len(b.renamed) > 0 {
		res.Renamed = b.renamed
	}
	if res.Warnings == nil {
		res.Warnings = []Warning{}
	}
	if waitErr != nil {
		return res, errors.Join(failures...)
	}
	return res, nil
}
