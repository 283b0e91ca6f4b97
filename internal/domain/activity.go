package domain

import "time"

// RecordOrder decides whether the best time of an activity is the shortest or the longest one.
type RecordOrder string

const (
	RecordOrderAsc  RecordOrder = "asc"
	RecordOrderDesc RecordOrder = "desc"
)

// Valid reports whether o is a known order.
func (o RecordOrder) Valid() bool {
	return o == RecordOrderAsc || o == RecordOrderDesc
}

// Activity is a named, timed thing a user repeats. Names are unique per owner.
type Activity struct {
	ID          string      `json:"-"`
	Name        string      `json:"name"`
	OwnerID     string      `json:"ownerId"`
	RecordOrder RecordOrder `json:"recordOrder"`
}

// Record is one timed run of an activity. ActivityName references Activity.Name of the same owner.
type Record struct {
	ID             string  `json:"-"`
	ActivityName   string  `json:"activityName"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	RecordedAt     string  `json:"recordedAt"`
	OwnerID        string  `json:"ownerId"`
	Memo           string  `json:"memo,omitempty"`
}

// Key returns the merge identity of the record.
func (r Record) Key() RecordKey {
	return RecordKey{ActivityName: r.ActivityName, RecordedAt: r.RecordedAt, ElapsedSeconds: r.ElapsedSeconds}
}

// RecordKey identifies "the same logical record" across owners and imports.
// RecordedAt is compared as an opaque string, never parsed.
type RecordKey struct {
	ActivityName   string
	RecordedAt     string
	ElapsedSeconds float64
}

// ReservationStatus tracks the lifecycle of a deletion reservation.
type ReservationStatus string

const (
	ReservationPending ReservationStatus = "delete"
	ReservationPurged  ReservationStatus = "purged"
)

// Reservation marks an identity whose data is to be purged by a later batch job.
type Reservation struct {
	ID         string
	IdentityID string
	Status     ReservationStatus
	ReservedAt time.Time
	PurgedAt   *time.Time
}
