// Package postgres provides the pgx-backed VersionStore. The versions
// table is append-only; ordering is (created_at, id) with id assigned by a
// sequence so ties on created_at stay deterministic.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chronicle-engine/chronicle"
)

// querier is the slice of pgx both *pgxpool.Pool and pgx.Tx satisfy, so a
// store can run over the shared pool or inside a host transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db querier
}

// NewStore wires a version store backed by pgxpool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// NewTxStore wires a version store over an open transaction. Appending
// through it makes the version commit or roll back together with the host's
// own mutation in the same transaction.
func NewTxStore(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

func (s *Store) Append(ctx context.Context, v *chronicle.Version) error {
	if s.db == nil {
		return fmt.Errorf("version store not initialized")
	}
	if v.Persisted() {
		return fmt.Errorf("version %d already appended", v.ID)
	}

	var object, objectChanges any
	if v.Object != nil {
		object = string(v.Object)
	}
	if v.ObjectChanges != nil {
		objectChanges = string(v.ObjectChanges)
	}

	var meta []byte
	if len(v.Meta) > 0 {
		encoded, err := json.Marshal(v.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode version metadata: %w", err)
		}
		meta = encoded
	}

	err := s.db.QueryRow(
		ctx,
		`INSERT INTO versions (item_type, item_id, event, whodunnit, transaction_id, object, object_changes, meta, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		v.ItemType,
		v.ItemID,
		string(v.Event),
		v.Whodunnit,
		v.TransactionID,
		object,
		objectChanges,
		meta,
		v.CreatedAt,
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to append version: %w", err)
	}

	return nil
}

func (s *Store) ForItem(ctx context.Context, itemType, itemID string) ([]chronicle.Version, error) {
	if s.db == nil {
		return nil, fmt.Errorf("version store not initialized")
	}

	rows, err := s.db.Query(
		ctx,
		`SELECT id, item_type, item_id, event, whodunnit, transaction_id, object, object_changes, meta, created_at
		 FROM versions
		 WHERE item_type = $1
		   AND item_id = $2
		 ORDER BY created_at ASC, id ASC`,
		itemType,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []chronicle.Version{}
	for rows.Next() {
		v, scanErr := scanVersion(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		versions = append(versions, v)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", rowsErr)
	}

	return versions, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (chronicle.Version, error) {
	if s.db == nil {
		return chronicle.Version{}, fmt.Errorf("version store not initialized")
	}

	rows, err := s.db.Query(
		ctx,
		`SELECT id, item_type, item_id, event, whodunnit, transaction_id, object, object_changes, meta, created_at
		 FROM versions
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return chronicle.Version{}, fmt.Errorf("failed to get version: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return chronicle.Version{}, fmt.Errorf("failed to get version: %w", rowsErr)
		}
		return chronicle.Version{}, chronicle.ErrNotFound
	}

	return scanVersion(rows)
}

func (s *Store) UpdateCreatedAt(ctx context.Context, id int64, createdAt time.Time) error {
	if s.db == nil {
		return fmt.Errorf("version store not initialized")
	}

	tag, err := s.db.Exec(
		ctx,
		`UPDATE versions SET created_at = $2 WHERE id = $1`,
		id,
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to correct version timestamp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chronicle.ErrNotFound
	}

	return nil
}

func scanVersion(rows pgx.Rows) (chronicle.Version, error) {
	var (
		v             chronicle.Version
		event         string
		object        pgtype.Text
		objectChanges pgtype.Text
		meta          []byte
		createdAt     pgtype.Timestamptz
	)
	if err := rows.Scan(
		&v.ID,
		&v.ItemType,
		&v.ItemID,
		&event,
		&v.Whodunnit,
		&v.TransactionID,
		&object,
		&objectChanges,
		&meta,
		&createdAt,
	); err != nil {
		return chronicle.Version{}, fmt.Errorf("failed to scan version: %w", err)
	}

	v.Event = chronicle.Event(event)
	if object.Valid {
		v.Object = []byte(object.String)
	}
	if objectChanges.Valid {
		v.ObjectChanges = []byte(objectChanges.String)
	}
	if len(meta) > 0 {
		decoded := map[string]any{}
		if err := json.Unmarshal(meta, &decoded); err != nil {
			return chronicle.Version{}, fmt.Errorf("failed to decode version metadata: %w", err)
		}
		v.Meta = decoded
	}
	if createdAt.Valid {
		v.CreatedAt = createdAt.Time
	}

	return v, nil
}

var _ chronicle.VersionStore = (*Store)(nil)
