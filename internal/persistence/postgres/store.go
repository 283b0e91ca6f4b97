// Package postgres implements the document store on a single jsonb table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activitytimer/internal/domain"
)

// Store provides Postgres-backed persistence for every collection.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Query returns documents of the collection whose fields contain every filter pair.
func (s *Store) Query(ctx context.Context, collection string, filters domain.Fields) ([]domain.Document, error) {
	if filters == nil {
		filters = domain.Fields{}
	}
	filter, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}

	const query = `SELECT id::text, fields FROM documents
        WHERE collection=$1 AND fields @> $2::jsonb
        ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, collection, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields := domain.Fields{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		docs = append(docs, domain.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Insert creates one document and returns it with its generated id.
func (s *Store) Insert(ctx context.Context, collection string, fields domain.Fields) (domain.Document, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return domain.Document{}, fmt.Errorf("encode fields: %w", err)
	}

	id := uuid.NewString()
	const stmt = `INSERT INTO documents (id, collection, fields) VALUES ($1::uuid,$2,$3::jsonb)`
	if _, err := s.pool.Exec(ctx, stmt, id, collection, body); err != nil {
		return domain.Document{}, err
	}

	out := make(domain.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return domain.Document{ID: id, Fields: out}, nil
}

// Update merges the supplied fields into the stored document.
func (s *Store) Update(ctx context.Context, collection, id string, fields domain.Fields) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrDocumentNotFound
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}

	const stmt = `UPDATE documents SET fields = fields || $3::jsonb, updated_at = NOW()
        WHERE collection=$1 AND id=$2::uuid`
	tag, err := s.pool.Exec(ctx, stmt, collection, id, patch)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes one document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrDocumentNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2::uuid`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
