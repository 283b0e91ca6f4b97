// Package store wraps the document store with typed, schema-checked access to activities,
// records and deletion reservations.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"example.com/activitytimer/internal/domain"
)

// Option configures optional behaviour for the Repository.
type Option func(*Repository)

// WithLogger overrides the logger used to report skipped documents.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// Repository converts between loosely typed documents and domain types.
type Repository struct {
	docs     domain.DocumentStore
	validate *validator.Validate
	logger   zerolog.Logger
}

// New constructs a Repository over docs.
func New(docs domain.DocumentStore, opts ...Option) *Repository {
	r := &Repository{
		docs:     docs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Docs exposes the underlying document store.
func (r *Repository) Docs() domain.DocumentStore {
	return r.docs
}

type activitySchema struct {
	Name        string `validate:"required"`
	OwnerID     string `validate:"required"`
	RecordOrder string `validate:"required,oneof=asc desc"`
}

type recordSchema struct {
	ActivityName   string  `validate:"required"`
	ElapsedSeconds float64 `validate:"gte=0"`
	RecordedAt     string  `validate:"required"`
	OwnerID        string  `validate:"required"`
}

// ListActivities returns every activity owned by ownerID.
func (r *Repository) ListActivities(ctx context.Context, ownerID string) ([]domain.Activity, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionActivities, domain.Fields{"ownerId": ownerID})
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	out := make([]domain.Activity, 0, len(docs))
	for _, doc := range docs {
		act, err := r.decodeActivity(doc)
		if err != nil {
			r.skipped(domain.CollectionActivities, doc.ID, err)
			continue
		}
		out = append(out, act)
	}
	return out, nil
}

// FindActivity looks up an activity by name.
func (r *Repository) FindActivity(ctx context.Context, ownerID, name string) (*domain.Activity, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionActivities, domain.Fields{"ownerId": ownerID, "name": name})
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	for _, doc := range docs {
		act, err := r.decodeActivity(doc)
		if err != nil {
			r.skipped(domain.CollectionActivities, doc.ID, err)
			continue
		}
		return &act, nil
	}
	return nil, domain.ErrActivityNotFound
}

// InsertActivity validates and stores an activity. RecordOrder defaults to asc and OwnerID
// defaults to sess.OwnerID. Invalid activities are dropped with ErrValidationSkipped.
func (r *Repository) InsertActivity(ctx context.Context, sess domain.Session, act domain.Activity) (domain.Activity, error) {
	if act.RecordOrder == "" {
		act.RecordOrder = domain.RecordOrderAsc
	}
	if strings.TrimSpace(act.OwnerID) == "" {
		act.OwnerID = sess.OwnerID
	}
	schema := activitySchema{Name: act.Name, OwnerID: act.OwnerID, RecordOrder: string(act.RecordOrder)}
	if err := r.validate.Struct(schema); err != nil {
		r.skipped(domain.CollectionActivities, "", err)
		return domain.Activity{}, fmt.Errorf("%w: %v", domain.ErrValidationSkipped, err)
	}

	doc, err := r.docs.Insert(ctx, domain.CollectionActivities, domain.Fields{
		"name":        act.Name,
		"ownerId":     act.OwnerID,
		"recordOrder": string(act.RecordOrder),
	})
	if err != nil {
		return domain.Activity{}, err
	}
	act.ID = doc.ID
	return act, nil
}

// UpdateRecordOrder changes how the best time of an activity is chosen.
func (r *Repository) UpdateRecordOrder(ctx context.Context, activityID string, order domain.RecordOrder) error {
	return r.docs.Update(ctx, domain.CollectionActivities, activityID, domain.Fields{"recordOrder": string(order)})
}

// DeleteActivity removes a single activity document.
func (r *Repository) DeleteActivity(ctx context.Context, activityID string) error {
	return r.docs.Delete(ctx, domain.CollectionActivities, activityID)
}

// ListRecords returns the owner's records, narrowed to one activity when activityName is set.
func (r *Repository) ListRecords(ctx context.Context, ownerID, activityName string) ([]domain.Record, error) {
	filters := domain.Fields{"ownerId": ownerID}
	if activityName != "" {
		filters["activityName"] = activityName
	}
	docs, err := r.docs.Query(ctx, domain.CollectionRecords, filters)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	out := make([]domain.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := r.decodeRecord(doc)
		if err != nil {
			r.skipped(domain.CollectionRecords, doc.ID, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// InsertRecord validates and stores a record. OwnerID defaults to sess.OwnerID.
func (r *Repository) InsertRecord(ctx context.Context, sess domain.Session, rec domain.Record) (domain.Record, error) {
	if strings.TrimSpace(rec.OwnerID) == "" {
		rec.OwnerID = sess.OwnerID
	}
	schema := recordSchema{
		ActivityName:   rec.ActivityName,
		ElapsedSeconds: rec.ElapsedSeconds,
		RecordedAt:     rec.RecordedAt,
		OwnerID:        rec.OwnerID,
	}
	if err := r.validate.Struct(schema); err != nil {
		r.skipped(domain.CollectionRecords, "", err)
		return domain.Record{}, fmt.Errorf("%w: %v", domain.ErrValidationSkipped, err)
	}

	doc, err := r.docs.Insert(ctx, domain.CollectionRecords, domain.Fields{
		"activityName":   rec.ActivityName,
		"elapsedSeconds": rec.ElapsedSeconds,
		"recordedAt":     rec.RecordedAt,
		"ownerId":        rec.OwnerID,
		"memo":           rec.Memo,
	})
	if err != nil {
		return domain.Record{}, err
	}
	rec.ID = doc.ID
	return rec, nil
}

// UpdateMemo patches only the memo field of a record.
func (r *Repository) UpdateMemo(ctx context.Context, recordID, memo string) error {
	return r.docs.Update(ctx, domain.CollectionRecords, recordID, domain.Fields{"memo": memo})
}

// DeleteRecord removes a single record document.
func (r *Repository) DeleteRecord(ctx context.Context, recordID string) error {
	return r.docs.Delete(ctx, domain.CollectionRecords, recordID)
}

// InsertReservation stores a pending deletion reservation for identityID.
func (r *Repository) InsertReservation(ctx context.Context, identityID string, at time.Time) (domain.Reservation, error) {
	if strings.TrimSpace(identityID) == "" {
		return domain.Reservation{}, fmt.Errorf("%w: identity id is required", domain.ErrValidationSkipped)
	}
	res := domain.Reservation{IdentityID: identityID, Status: domain.ReservationPending, ReservedAt: at.UTC()}
	doc, err := r.docs.Insert(ctx, domain.CollectionReservations, domain.Fields{
		"identityId": res.IdentityID,
		"status":     string(res.Status),
		"reservedAt": res.ReservedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	res.ID = doc.ID
	return res, nil
}

// ListReservations returns reservations in the given status, oldest first, at most limit when limit > 0.
func (r *Repository) ListReservations(ctx context.Context, status domain.ReservationStatus, limit int) ([]domain.Reservation, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionReservations, domain.Fields{"status": string(status)})
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	out := make([]domain.Reservation, 0, len(docs))
	for _, doc := range docs {
		res, err := decodeReservation(doc)
		if err != nil {
			r.skipped(domain.CollectionReservations, doc.ID, err)
			continue
		}
		out = append(out, res)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkReservationPurged records that the reservation's data has been deleted.
func (r *Repository) MarkReservationPurged(ctx context.Context, reservationID string, at time.Time) error {
	return r.docs.Update(ctx, domain.CollectionReservations, reservationID, domain.Fields{
		"status":   string(domain.ReservationPurged),
		"purgedAt": at.UTC().Format(time.RFC3339Nano),
	})
}

func (r *Repository) skipped(collection, id string, err error) {
	r.logger.Warn().
		Str("evt.name", "validation.skipped").
		Str("collection", collection).
		Str("document_id", id).
		Err(err).
		Msg("document failed schema check")
}

var errMissingField = errors.New("missing required field")

func (r *Repository) decodeActivity(doc domain.Document) (domain.Activity, error) {
	name, _ := doc.Fields["name"].(string)
	owner, _ := doc.Fields["ownerId"].(string)
	order, _ := doc.Fields["recordOrder"].(string)
	if order == "" {
		order = string(domain.RecordOrderAsc)
	}
	if err := r.validate.Struct(activitySchema{Name: name, OwnerID: owner, RecordOrder: order}); err != nil {
		return domain.Activity{}, err
	}
	return domain.Activity{ID: doc.ID, Name: name, OwnerID: owner, RecordOrder: domain.RecordOrder(order)}, nil
}

func (r *Repository) decodeRecord(doc domain.Document) (domain.Record, error) {
	elapsed, ok := number(doc.Fields["elapsedSeconds"])
	if !ok {
		return domain.Record{}, fmt.Errorf("%w: elapsedSeconds", errMissingField)
	}
	rec := domain.Record{ID: doc.ID, ElapsedSeconds: elapsed}
	rec.ActivityName, _ = doc.Fields["activityName"].(string)
	rec.RecordedAt, _ = doc.Fields["recordedAt"].(string)
	rec.OwnerID, _ = doc.Fields["ownerId"].(string)
	rec.Memo, _ = doc.Fields["memo"].(string)

	schema := recordSchema{
		ActivityName:   rec.ActivityName,
		ElapsedSeconds: rec.ElapsedSeconds,
		RecordedAt:     rec.RecordedAt,
		OwnerID:        rec.OwnerID,
	}
	if err := r.validate.Struct(schema); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func decodeReservation(doc domain.Document) (domain.Reservation, error) {
	identityID, _ := doc.Fields["identityId"].(string)
	status, _ := doc.Fields["status"].(string)
	if identityID == "" || status == "" {
		return domain.Reservation{}, fmt.Errorf("%w: identityId/status", errMissingField)
	}
	res := domain.Reservation{ID: doc.ID, IdentityID: identityID, Status: domain.ReservationStatus(status)}
	if raw, ok := doc.Fields["reservedAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			res.ReservedAt = ts
		}
	}
	if raw, ok := doc.Fields["purgedAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			res.PurgedAt = &ts
		}
	}
	return res, nil
}

// number accepts the numeric shapes produced by JSON decoding and by in-process stores.
func number(v any) (float64, bool) {
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
