// Package tracker implements the everyday activity timer operations: activities, saved runs,
// memos and standings.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/activitytimer/internal/domain"
)

// Repository is the typed store the tracker works against.
type Repository interface {
	ListActivities(ctx context.Context, ownerID string) ([]domain.Activity, error)
	FindActivity(ctx context.Context, ownerID, name string) (*domain.Activity, error)
	InsertActivity(ctx context.Context, sess domain.Session, act domain.Activity) (domain.Activity, error)
	UpdateRecordOrder(ctx context.Context, activityID string, order domain.RecordOrder) error
	DeleteActivity(ctx context.Context, activityID string) error
	ListRecords(ctx context.Context, ownerID, activityName string) ([]domain.Record, error)
	InsertRecord(ctx context.Context, sess domain.Session, rec domain.Record) (domain.Record, error)
	UpdateMemo(ctx context.Context, recordID, memo string) error
	DeleteRecord(ctx context.Context, recordID string) error
}

// RecordedAtLayout is the timestamp format written for new records.
const RecordedAtLayout = "2006-01-02 15:04:05"

// Service exposes tracker operations scoped to one session at a time.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, now: time.Now, logger: logger}
}

// ListActivities returns the owner's activities by name.
func (s *Service) ListActivities(ctx context.Context, sess domain.Session) ([]domain.Activity, error) {
	acts, err := s.repo.ListActivities(ctx, sess.OwnerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].Name < acts[j].Name })
	return acts, nil
}

// CreateActivity adds a new activity. Names are unique per owner.
func (s *Service) CreateActivity(ctx context.Context, sess domain.Session, name string, order domain.RecordOrder) (domain.Activity, error) {
	name = strings.TrimSpace(name)
	if _, err := s.repo.FindActivity(ctx, sess.OwnerID, name); err == nil {
		return domain.Activity{}, domain.ErrDuplicateActivity
	} else if !errors.Is(err, domain.ErrActivityNotFound) {
		return domain.Activity{}, err
	}
	return s.repo.InsertActivity(ctx, sess, domain.Activity{Name: name, OwnerID: sess.OwnerID, RecordOrder: order})
}

// SetRecordOrder changes whether the activity's best time is its shortest or longest one.
func (s *Service) SetRecordOrder(ctx context.Context, sess domain.Session, name string, order domain.RecordOrder) error {
	if !order.Valid() {
		return fmt.Errorf("%w: record order %q", domain.ErrValidationSkipped, order)
	}
	act, err := s.repo.FindActivity(ctx, sess.OwnerID, name)
	if err != nil {
		return err
	}
	return s.repo.UpdateRecordOrder(ctx, act.ID, order)
}

// DeleteActivity removes the activity and every record of it, returning how many records went.
func (s *Service) DeleteActivity(ctx context.Context, sess domain.Session, name string) (int, error) {
	act, err := s.repo.FindActivity(ctx, sess.OwnerID, name)
	if err != nil {
		return 0, err
	}
	recs, err := s.repo.ListRecords(ctx, sess.OwnerID, name)
	if err != nil {
		return 0, err
	}

	var eg errgroup.Group
	eg.SetLimit(16)
	for _, rec := range recs {
		eg.Go(func() error { return s.repo.DeleteRecord(ctx, rec.ID) })
	}
	if err := eg.Wait(); err != nil {
		return 0, fmt.Errorf("delete records of %q: %w", name, err)
	}
	if err := s.repo.DeleteActivity(ctx, act.ID); err != nil {
		return len(recs), err
	}
	s.logger.Info().
		Str("evt.name", "activity.deleted").
		Str("owner_id", sess.OwnerID).
		Str("activity", name).
		Int("records", len(recs)).
		Msg("activity deleted")
	return len(recs), nil
}

// SaveRecord stores one finished timer run. An empty recordedAt is stamped with the current time.
func (s *Service) SaveRecord(ctx context.Context, sess domain.Session, rec domain.Record) (domain.Record, error) {
	if _, err := s.repo.FindActivity(ctx, sess.OwnerID, rec.ActivityName); err != nil {
		return domain.Record{}, err
	}
	if rec.RecordedAt == "" {
		rec.RecordedAt = s.now().Format(RecordedAtLayout)
	}
	rec.ID = ""
	rec.OwnerID = sess.OwnerID
	return s.repo.InsertRecord(ctx, sess, rec)
}

// DeleteRecord removes one of the owner's records.
func (s *Service) DeleteRecord(ctx context.Context, sess domain.Session, recordID string) error {
	if _, err := s.ownedRecord(ctx, sess, recordID); err != nil {
		return err
	}
	return s.repo.DeleteRecord(ctx, recordID)
}

// EditMemo replaces the memo of one of the owner's records.
func (s *Service) EditMemo(ctx context.Context, sess domain.Session, recordID, memo string) (domain.Record, error) {
	rec, err := s.ownedRecord(ctx, sess, recordID)
	if err != nil {
		return domain.Record{}, err
	}
	if err := s.repo.UpdateMemo(ctx, recordID, memo); err != nil {
		return domain.Record{}, err
	}
	rec.Memo = memo
	return rec, nil
}

func (s *Service) ownedRecord(ctx context.Context, sess domain.Session, recordID string) (domain.Record, error) {
	recs, err := s.repo.ListRecords(ctx, sess.OwnerID, "")
	if err != nil {
		return domain.Record{}, err
	}
	for _, rec := range recs {
		if rec.ID == recordID {
			return rec, nil
		}
	}
	return domain.Record{}, domain.ErrRecordNotFound
}

// ListRecords returns the records of one activity in the requested order.
func (s *Service) ListRecords(ctx context.Context, sess domain.Session, activity string, by SortKey) ([]domain.Record, error) {
	if _, err := s.repo.FindActivity(ctx, sess.OwnerID, activity); err != nil {
		return nil, err
	}
	recs, err := s.repo.ListRecords(ctx, sess.OwnerID, activity)
	if err != nil {
		return nil, err
	}
	SortRecords(recs, by)
	return recs, nil
}

// Standings is the leaderboard of one activity.
type Standings struct {
	Activity string             `json:"activity"`
	Order    domain.RecordOrder `json:"record_order"`
	Best     []domain.Record    `json:"best"`
	Latest   *domain.Record     `json:"latest,omitempty"`
}

// DefaultStandingsSize is how many best times Standings returns when no limit is given.
const DefaultStandingsSize = 3

// Standings returns the best limit records of activity under its record order, and the latest run.
func (s *Service) Standings(ctx context.Context, sess domain.Session, activity string, limit int) (Standings, error) {
	act, err := s.repo.FindActivity(ctx, sess.OwnerID, activity)
	if err != nil {
		return Standings{}, err
	}
	recs, err := s.repo.ListRecords(ctx, sess.OwnerID, activity)
	if err != nil {
		return Standings{}, err
	}
	if limit <= 0 {
		limit = DefaultStandingsSize
	}

	out := Standings{Activity: act.Name, Order: act.RecordOrder, Best: []domain.Record{}}
	if len(recs) == 0 {
		return out, nil
	}

	byDate := append([]domain.Record(nil), recs...)
	SortRecords(byDate, SortDateDesc)
	latest := byDate[0]
	out.Latest = &latest

	by := SortTimeAsc
	if act.RecordOrder == domain.RecordOrderDesc {
		by = SortTimeDesc
	}
	SortRecords(recs, by)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	out.Best = recs
	return out, nil
}
