package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/versioned/internal/domain"
)

const uniqueViolationCode = "23505"

const versionColumns = "id, created_at, updated_at, entity_kind, entity_id, changer_kind, changer_id, version, snapshot"

// versionRepository implements VersionStore on Postgres.
type versionRepository struct {
	q Querier
}

// NewVersionRepository creates a version store backed by the given pool.
func NewVersionRepository(pool *pgxpool.Pool) VersionStore {
	return &versionRepository{q: pool}
}

// WithTx rescopes the store so its reads and writes join the transaction.
func (r *versionRepository) WithTx(tx pgx.Tx) VersionStore {
	return &versionRepository{q: tx}
}

// Append inserts one version record. A duplicate (entity_kind, entity_id,
// version) triple surfaces as ErrVersionConflict.
func (r *versionRepository) Append(ctx context.Context, record domain.VersionRecord) (domain.VersionRecord, error) {
	snapshotJSON, err := record.Snapshot.ToJSONB()
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var changerKind, changerID any
	if record.Changer != nil {
		changerKind = record.Changer.Kind
		changerID = record.Changer.ID
	}

	row := r.q.QueryRow(ctx,
		`INSERT INTO entity_versions (entity_kind, entity_id, changer_kind, changer_id, version, snapshot)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		record.Entity.Kind,
		record.Entity.ID,
		changerKind,
		changerID,
		record.Version,
		snapshotJSON,
	)
	if err := row.Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.VersionRecord{}, fmt.Errorf("append version %d for %s: %w", record.Version, record.Entity, ErrVersionConflict)
		}
		return domain.VersionRecord{}, fmt.Errorf("failed to append version record: %w", err)
	}

	record.Snapshot = record.Snapshot.Clone()
	return record, nil
}

// MaxVersion returns the highest committed version number for the entity, or
// 0 when it has none.
func (r *versionRepository) MaxVersion(ctx context.Context, entity domain.Ref) (int64, error) {
	var max int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM entity_versions WHERE entity_kind = $1 AND entity_id = $2`,
		entity.Kind,
		entity.ID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max version for %s: %w", entity, err)
	}
	return max, nil
}

// Get performs a point lookup. An absent version returns (nil, nil); callers
// routinely probe for versions that may not exist.
func (r *versionRepository) Get(ctx context.Context, entity domain.Ref, version int64) (*domain.VersionRecord, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+versionColumns+`
		 FROM entity_versions
		 WHERE entity_kind = $1 AND entity_id = $2 AND version = $3`,
		entity.Kind,
		entity.ID,
		version,
	)
	return scanOptionalVersion(row)
}

// Latest returns the record with the maximum version, or nil when the entity
// has no versions yet.
func (r *versionRepository) Latest(ctx context.Context, entity domain.Ref) (*domain.VersionRecord, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+versionColumns+`
		 FROM entity_versions
		 WHERE entity_kind = $1 AND entity_id = $2
		 ORDER BY version DESC
		 LIMIT 1`,
		entity.Kind,
		entity.ID,
	)
	return scanOptionalVersion(row)
}

// List returns all version records for the entity, ascending by version.
func (r *versionRepository) List(ctx context.Context, entity domain.Ref) ([]domain.VersionRecord, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+versionColumns+`
		 FROM entity_versions
		 WHERE entity_kind = $1 AND entity_id = $2
		 ORDER BY version ASC`,
		entity.Kind,
		entity.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for %s: %w", entity, err)
	}
	defer rows.Close()

	records := []domain.VersionRecord{}
	for rows.Next() {
		record, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate versions for %s: %w", entity, err)
	}

	return records, nil
}

func scanOptionalVersion(row pgx.Row) (*domain.VersionRecord, error) {
	record, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func scanVersion(row pgx.Row) (domain.VersionRecord, error) {
	var (
		record       domain.VersionRecord
		changerKind  pgtype.Text
		changerID    pgtype.Text
		snapshotJSON json.RawMessage
	)
	err := row.Scan(
		&record.ID,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.Entity.Kind,
		&record.Entity.ID,
		&changerKind,
		&changerID,
		&record.Version,
		&snapshotJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VersionRecord{}, err
		}
		return domain.VersionRecord{}, fmt.Errorf("failed to scan version record: %w", err)
	}

	record.Changer = buildChanger(changerKind, changerID)

	record.Snapshot, err = domain.SnapshotFromJSONB(snapshotJSON)
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("failed to decode snapshot for version %d of %s: %w", record.Version, record.Entity, err)
	}

	return record, nil
}

func buildChanger(kind, id pgtype.Text) *domain.Ref {
	if !kind.Valid && !id.Valid {
		return nil
	}
	return &domain.Ref{Kind: kind.String, ID: id.String}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
