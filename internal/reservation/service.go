// Package reservation defers deletion of superseded anonymous identities to a batch job.
package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/activitytimer/internal/domain"
)

// Store is the persistence the reservation service and purger need.
type Store interface {
	InsertReservation(ctx context.Context, identityID string, at time.Time) (domain.Reservation, error)
	ListReservations(ctx context.Context, status domain.ReservationStatus, limit int) ([]domain.Reservation, error)
	MarkReservationPurged(ctx context.Context, reservationID string, at time.Time) error
	ListActivities(ctx context.Context, ownerID string) ([]domain.Activity, error)
	ListRecords(ctx context.Context, ownerID, activityName string) ([]domain.Record, error)
	DeleteActivity(ctx context.Context, activityID string) error
	DeleteRecord(ctx context.Context, recordID string) error
}

// Service writes deletion reservations. It never deletes data itself.
type Service struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{store: store, now: time.Now, logger: logger}
}

// Reserve marks identityID's data for a later purge.
func (s *Service) Reserve(ctx context.Context, identityID string) (domain.Reservation, error) {
	res, err := s.store.InsertReservation(ctx, identityID, s.now())
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reserve %s for deletion: %w", identityID, err)
	}
	s.logger.Info().
		Str("evt.name", "reservation.created").
		Str("identity_id", identityID).
		Str("reservation_id", res.ID).
		Msg("identity reserved for deletion")
	return res, nil
}
