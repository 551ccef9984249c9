package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/versioned/internal/domain"
)

// ErrVersionConflict is returned by Append when a concurrent writer already
// claimed the version number being inserted. The uniqueness constraint on
// (entity_kind, entity_id, version) is what closes the read-then-append race;
// callers decide whether to retry.
var ErrVersionConflict = errors.New("version already exists for entity")

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx, so a
// repository can run against the pool or be rescoped into a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VersionStore defines durable storage over captured version records. Append
// is the only write path; records are never updated or deleted here.
type VersionStore interface {
	Append(ctx context.Context, record domain.VersionRecord) (domain.VersionRecord, error)
	MaxVersion(ctx context.Context, entity domain.Ref) (int64, error)
	Get(ctx context.Context, entity domain.Ref, version int64) (*domain.VersionRecord, error)
	Latest(ctx context.Context, entity domain.Ref) (*domain.VersionRecord, error)
	List(ctx context.Context, entity domain.Ref) ([]domain.VersionRecord, error)

	// WithTx returns a store scoped to the given transaction.
	WithTx(tx pgx.Tx) VersionStore
}

// ContactRepository defines persistence for the bundled reference entity.
type ContactRepository interface {
	Create(ctx context.Context, contact domain.Contact) (domain.Contact, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Contact, error)
	List(ctx context.Context, limit int, offset int) ([]domain.Contact, error)
	Save(ctx context.Context, tx pgx.Tx, contact *domain.Contact) error
	Delete(ctx context.Context, id uuid.UUID) error
}
