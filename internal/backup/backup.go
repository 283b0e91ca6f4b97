// Package backup exports an owner's data as a JSON document and merges such documents back in.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/merge"
)

// Version is the backup format written by Export. Documents without a version are version 1.
const Version = 1

// Document is the backup file format.
type Document struct {
	Version    int               `json:"version,omitempty"`
	Activities []domain.Activity `json:"activities"`
	Records    []domain.Record   `json:"records"`
	ExportedAt string            `json:"exportedAt"`
}

// Dataset converts the document into merge input.
func (d Document) Dataset() merge.Dataset {
	return merge.Dataset{Activities: d.Activities, Records: d.Records}
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Decode reads a backup document and checks its version.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode backup: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	if doc.Version > Version {
		return Document{}, fmt.Errorf("%w: %d", domain.ErrUnsupportedBackupVersion, doc.Version)
	}
	if doc.Activities == nil {
		doc.Activities = []domain.Activity{}
	}
	if doc.Records == nil {
		doc.Records = []domain.Record{}
	}
	return doc, nil
}

// DecodeBytes is Decode over an in-memory body.
func DecodeBytes(b []byte) (Document, error) {
	return Decode(bytes.NewReader(b))
}

// Source is the read side of the repository an export needs.
type Source interface {
	ListActivities(ctx context.Context, ownerID string) ([]domain.Activity, error)
	ListRecords(ctx context.Context, ownerID, activityName string) ([]domain.Record, error)
}

// Export collects every activity and record of ownerID.
func Export(ctx context.Context, src Source, ownerID string, now time.Time) (Document, error) {
	acts, err := src.ListActivities(ctx, ownerID)
	if err != nil {
		return Document{}, fmt.Errorf("export activities: %w", err)
	}
	recs, err := src.ListRecords(ctx, ownerID, "")
	if err != nil {
		return Document{}, fmt.Errorf("export records: %w", err)
	}
	return Document{
		Version:    Version,
		Activities: acts,
		Records:    recs,
		ExportedAt: now.UTC().Format(time.RFC3339),
	}, nil
}

// Runner is the merge confirmation flow as the importer uses it.
type Runner interface {
	Run(ctx context.Context, sess domain.Session, prompter merge.Prompter, in merge.Dataset, mode merge.Mode) (merge.Outcome, error)
}

// Importer merges backup documents into the caller's account.
type Importer struct {
	flow   Runner
	logger zerolog.Logger
}

// NewImporter constructs an Importer.
func NewImporter(flow Runner, logger zerolog.Logger) *Importer {
	return &Importer{flow: flow, logger: logger}
}

// Import runs the merge flow in import mode over doc.
func (i *Importer) Import(ctx context.Context, sess domain.Session, prompter merge.Prompter, doc Document) (merge.Outcome, error) {
	i.logger.Info().
		Str("evt.name", "backup.import").
		Str("owner_id", sess.OwnerID).
		Int("activities", len(doc.Activities)).
		Int("records", len(doc.Records)).
		Str("exported_at", doc.ExportedAt).
		Msg("importing backup")
	return i.flow.Run(ctx, sess, prompter, doc.Dataset(), merge.ModeImport)
}
