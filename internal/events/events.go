// Package events publishes the refresh signals emitted after merges and purges.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/merge"
)

// Event types carried in the event_type header.
const (
	TypeMergeCompleted    = "merge.completed"
	TypeReservationPurged = "reservation.purged"
)

// Writer is the part of *kafka.Writer the publisher needs. The topic is fixed by the writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds the writer for the events topic. Messages are partitioned by their owner key
// so one owner's events stay ordered.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// MergeCompleted tells presentation layers that an owner's data changed underneath them.
type MergeCompleted struct {
	OwnerID         string            `json:"owner_id"`
	Mode            string            `json:"mode"`
	ActivitiesAdded int               `json:"activities_added"`
	RecordsAdded    int               `json:"records_added"`
	MemosUpdated    int               `json:"memos_updated"`
	Renamed         map[string]string `json:"renamed,omitempty"`
	Warnings        []merge.Warning   `json:"warnings"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

// ReservationPurged reports that a superseded identity's data is gone.
type ReservationPurged struct {
	ReservationID string    `json:"reservation_id"`
	IdentityID    string    `json:"identity_id"`
	Activities    int       `json:"activities"`
	Records       int       `json:"records"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher writes events keyed by owner.
type Publisher struct {
	writer Writer
	now    func() time.Time
	logger zerolog.Logger
}

// NewPublisher constructs a Publisher.
func NewPublisher(writer Writer, logger zerolog.Logger) *Publisher {
	return &Publisher{writer: writer, now: time.Now, logger: logger}
}

// Refresh implements merge.Refresher by publishing MergeCompleted.
func (p *Publisher) Refresh(ctx context.Context, sess domain.Session, mode merge.Mode, res *merge.Result) error {
	evt := MergeCompleted{OwnerID: sess.OwnerID, Mode: string(mode), OccurredAt: p.now().UTC()}
	if res != nil {
		evt.ActivitiesAdded = res.ActivitiesAdded
		evt.RecordsAdded = res.RecordsAdded
		evt.MemosUpdated = res.MemosUpdated
		evt.Renamed = res.Renamed
		evt.Warnings = res.Warnings
	}
	return p.publish(ctx, TypeMergeCompleted, sess.OwnerID, evt)
}

// Purged publishes ReservationPurged.
func (p *Publisher) Purged(ctx context.Context, evt ReservationPurged) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = p.now().UTC()
	}
	return p.publish(ctx, TypeReservationPurged, evt.IdentityID, evt)
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  p.now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.logger.Debug().Str("evt.name", eventType).Str("key", key).Msg("event published")
	return nil
}

// Noop discards every event. Used when no brokers are configured.
type Noop struct{}

// Refresh implements merge.Refresher.
func (Noop) Refresh(context.Context, domain.Session, merge.Mode, *merge.Result) error { return nil }

// Purged discards evt.
func (Noop) Purged(context.Context, ReservationPurged) error { return nil }
