package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/events"
	"example.com/activitytimer/internal/observability"
)

// Notifier is told about each completed purge.
type Notifier interface {
	Purged(ctx context.Context, evt events.ReservationPurged) error
}

// Purger deletes the data of pending reservations and marks them purged.
type Purger struct {
	store       Store
	notifier    Notifier
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger
}

// NewPurger constructs a Purger. concurrency bounds deletes per reservation; <= 0 means 16.
func NewPurger(store Store, notifier Notifier, concurrency int, logger zerolog.Logger) *Purger {
	if concurrency <= 0 {
		concurrency = 16
	}
	if notifier == nil {
		notifier = events.Noop{}
	}
	return &Purger{store: store, notifier: notifier, concurrency: concurrency, now: time.Now, logger: logger}
}

// RunOnce purges up to batchSize pending reservations and returns how many completed.
func (p *Purger) RunOnce(ctx context.Context, batchSize int) (int, error) {
	pending, err := p.store.ListReservations(ctx, domain.ReservationPending, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending reservations: %w", err)
	}

	processed := 0
	for _, res := range pending {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		activities, records, purgeErr := p.purge(ctx, res.IdentityID)
		if purgeErr != nil {
			err = errors.Join(err, fmt.Errorf("purge reservation %s: %w", res.ID, purgeErr))
			continue
		}
		at := p.now().UTC()
		if markErr := p.store.MarkReservationPurged(ctx, res.ID, at); markErr != nil {
			err = errors.Join(err, fmt.Errorf("mark reservation %s: %w", res.ID, markErr))
			continue
		}
		processed++
		observability.RecordPurged(at)
		p.logger.Info().
			Str("evt.name", "reservation.purged").
			Str("reservation_id", res.ID).
			Str("identity_id", res.IdentityID).
			Int("activities", activities).
			Int("records", records).
			Msg("reserved identity purged")

		evt := events.ReservationPurged{
			ReservationID: res.ID,
			IdentityID:    res.IdentityID,
			Activities:    activities,
			Records:       records,
			OccurredAt:    at,
		}
		if notifyErr := p.notifier.Purged(ctx, evt); notifyErr != nil {
			p.logger.Warn().Err(notifyErr).Str("reservation_id", res.ID).Msg("purge event not delivered")
		}
	}
	return processed, err
}

// purge deletes every activity and record owned by identityID.
func (p *Purger) purge(ctx context.Context, identityID string) (int, int, error) {
	activities, err := p.store.ListActivities(ctx, identityID)
	if err != nil {
		return 0, 0, err
	}
	records, err := p.store.ListRecords(ctx, identityID, "")
	if err != nil {
		return 0, 0, err
	}

	var eg errgroup.Group
	eg.SetLimit(p.concurrency)
	for _, rec := range records {
		eg.Go(func() error { return p.store.DeleteRecord(ctx, rec.ID) })
	}
	for _, act := range activities {
		eg.Go(func() error { return p.store.DeleteActivity(ctx, act.ID) })
	}
	if err := eg.Wait(); err != nil {
		return 0, 0, err
	}
	return len(activities), len(records), nil
}
