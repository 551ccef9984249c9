package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/versioned/internal/domain"
)

const contactColumns = "id, fields, created_at, updated_at"

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository creates a repository for the bundled reference entity.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

func (r *contactRepository) Create(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	fieldsJSON, err := contact.GetFieldsAsJSONB()
	if err != nil {
		return domain.Contact{}, fmt.Errorf("failed to marshal contact fields: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO contacts (id, fields) VALUES ($1, $2) RETURNING created_at, updated_at`,
		contact.ID,
		fieldsJSON,
	)
	if err := row.Scan(&contact.CreatedAt, &contact.UpdatedAt); err != nil {
		return domain.Contact{}, fmt.Errorf("failed to create contact: %w", err)
	}

	return contact, nil
}

func (r *contactRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Contact, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`,
		id,
	)
	return scanContact(row)
}

func (r *contactRepository) List(ctx context.Context, limit int, offset int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts ORDER BY created_at ASC LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}

	return contacts, nil
}

// Save persists the contact's staged field state inside the caller's
// transaction, so the write commits or rolls back with the version append.
func (r *contactRepository) Save(ctx context.Context, tx pgx.Tx, contact *domain.Contact) error {
	fieldsJSON, err := contact.GetFieldsAsJSONB()
	if err != nil {
		return fmt.Errorf("failed to marshal contact fields: %w", err)
	}

	row := tx.QueryRow(ctx,
		`UPDATE contacts SET fields = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		contact.ID,
		fieldsJSON,
	)
	if err := row.Scan(&contact.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save contact %s: %w", contact.ID, err)
	}

	return nil
}

func (r *contactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	return nil
}

func scanContact(row pgx.Row) (domain.Contact, error) {
	var (
		contact    domain.Contact
		fieldsJSON json.RawMessage
	)
	if err := row.Scan(&contact.ID, &fieldsJSON, &contact.CreatedAt, &contact.UpdatedAt); err != nil {
		return domain.Contact{}, fmt.Errorf("failed to scan contact: %w", err)
	}

	fields, err := domain.FromJSONBFields(fieldsJSON)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("failed to decode fields for contact %s: %w", contact.ID, err)
	}
	contact.Fields = fields

	return contact, nil
}
