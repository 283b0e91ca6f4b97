package api

import (
	"encoding/json"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/identity"
)

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	RecordOrder string `json:"record_order" validate:"omitempty,oneof=asc desc"`
}

// UpdateActivityRequest is the payload for PATCH /v1/activities/{name}.
type UpdateActivityRequest struct {
	RecordOrder string `json:"record_order" validate:"required,oneof=asc desc"`
}

// SaveRecordRequest is the payload for POST /v1/activities/{name}/records.
type SaveRecordRequest struct {
	ElapsedSeconds float64 `json:"elapsed_seconds" validate:"gte=0"`
	RecordedAt     string  `json:"recorded_at"`
	Memo           string  `json:"memo" validate:"max=2000"`
}

// EditMemoRequest is the payload for PATCH /v1/records/{id}.
type EditMemoRequest struct {
	Memo string `json:"memo" validate:"max=20000"`
}

// Decisions carries the answers to both merge confirmation gates up front.
type Decisions struct {
	Confirm         bool `json:"confirm"`
	MergeCollisions bool `json:"merge_collisions"`
}

// ImportRequest is the payload for POST /v1/backup/import.
type ImportRequest struct {
	Decisions
	Backup json.RawMessage `json:"backup" validate:"required"`
}

// PreviewRequest is the payload for POST /v1/merge/preview.
type PreviewRequest struct {
	Names []string `json:"names" validate:"required,dive,required"`
}

// PreviewResponse lists the incoming names that already exist for the caller.
type PreviewResponse struct {
	Collisions []string `json:"collisions"`
}

// UpgradeRequest is the payload for POST /v1/account/upgrade.
type UpgradeRequest struct {
	Decisions
	Credential identity.Credential `json:"credential" validate:"required"`
}

// ActivityView is the API shape of an activity.
type ActivityView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RecordOrder string `json:"record_order"`
}

// RecordView is the API shape of a record.
type RecordView struct {
	ID             string  `json:"id"`
	ActivityName   string  `json:"activity_name"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	RecordedAt     string  `json:"recorded_at"`
	Memo           string  `json:"memo"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// ListRecordsResponse packages list results.
type ListRecordsResponse struct {
	Items []RecordView `json:"items"`
}

// StandingsResponse is the leaderboard of one activity.
type StandingsResponse struct {
	Activity    string       `json:"activity"`
	RecordOrder string       `json:"record_order"`
	Best        []RecordView `json:"best"`
	Latest      *RecordView  `json:"latest,omitempty"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{ID: a.ID, Name: a.Name, RecordOrder: string(a.RecordOrder)}
}

func toRecordView(r domain.Record) RecordView {
	return RecordView{
		ID:             r.ID,
		ActivityName:   r.ActivityName,
		ElapsedSeconds: r.ElapsedSeconds,
		RecordedAt:     r.RecordedAt,
		Memo:           r.Memo,
	}
}

func toRecordViews(recs []domain.Record) []RecordView {
	out := make([]RecordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecordView(r))
	}
	return out
}
