// Package domain defines the core types and ports shared by the activity timer services.
package domain

import (
	"context"
	"errors"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrRecordNotFound is returned when a record cannot be located.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateActivity indicates an activity with the same name already exists for the owner.
	ErrDuplicateActivity = errors.New("activity name already in use")
	// ErrValidationSkipped marks a document dropped at the storage boundary for missing required fields.
	ErrValidationSkipped = errors.New("document failed validation and was skipped")
	// ErrDocumentNotFound is returned by stores when an id does not exist in a collection.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrCredentialAlreadyClaimed is the recoverable identity-promotion failure that triggers a merge.
	ErrCredentialAlreadyClaimed = errors.New("credential already linked to another account")
	// ErrUnsupportedBackupVersion is returned when a backup was written by a newer format.
	ErrUnsupportedBackupVersion = errors.New("unsupported backup version")
)

// Collection names used by the document store.
const (
	CollectionActivities   = "activities"
	CollectionRecords      = "records"
	CollectionReservations = "deletionReservations"
)

// Fields is the loosely typed body of a stored document.
type Fields map[string]any

// Document is a stored document tagged with its opaque identifier.
type Document struct {
	ID     string
	Fields Fields
}

// DocumentStore is the generic store reached by collection name and equality filters.
type DocumentStore interface {
	Query(ctx context.Context, collection string, filters Fields) ([]Document, error)
	Insert(ctx context.Context, collection string, fields Fields) (Document, error)
	// Update applies merge-patch semantics: only the named fields change.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

// Identity is an account as seen by the external identity provider.
type Identity struct {
	ID        string `json:"id"`
	Anonymous bool   `json:"anonymous"`
}

// Session carries the caller's identity explicitly through every operation.
type Session struct {
	OwnerID string
}
