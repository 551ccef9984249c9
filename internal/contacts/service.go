package contacts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/versioned/internal/domain"
	"github.com/rpattn/versioned/internal/repository"
	"github.com/rpattn/versioned/internal/versioning"
)

// Kind is the polymorphic tag contacts are versioned under.
const Kind = "contact"

// Service runs the bundled reference entity through the versioning engine.
type Service struct {
	repo   repository.ContactRepository
	engine *versioning.Engine
}

// NewService creates a contact service.
func NewService(repo repository.ContactRepository, engine *versioning.Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

// RegisterLoader wires the contact kind into a changer registry.
func (s *Service) RegisterLoader(registry *versioning.Registry) {
	registry.Register(Kind, func(ctx context.Context, id string) (any, error) {
		contactID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid contact id %q: %w", id, err)
		}
		return s.repo.GetByID(ctx, contactID)
	})
}

// Create persists a new contact. Creation is not versioned; the history
// starts with the first versioned update.
func (s *Service) Create(ctx context.Context, fields map[string]any) (domain.Contact, error) {
	return s.repo.Create(ctx, domain.NewContact(fields))
}

// Get returns one contact by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Contact, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of contacts.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Contact, error) {
	return s.repo.List(ctx, limit, offset)
}

// Delete removes a contact. Its version history stays behind; retention is a
// policy decision outside this library.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Update applies the changes through the versioning engine and returns the
// updated contact together with the freshly committed version record. The
// record is nil when the change set was empty.
func (s *Service) Update(ctx context.Context, id uuid.UUID, changes map[string]any) (domain.Contact, *domain.VersionRecord, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Contact{}, nil, err
	}

	record, err := s.engine.UpdateVersioned(ctx, s.versioned(&contact), changes)
	if err != nil {
		return domain.Contact{}, nil, err
	}

	return contact, record, nil
}

// Versions returns the contact's full version history, ascending.
func (s *Service) Versions(ctx context.Context, id uuid.UUID) ([]domain.VersionRecord, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.GetVersions(ctx, s.versioned(&contact))
}

// Version returns one version of the contact, or nil when absent.
func (s *Service) Version(ctx context.Context, id uuid.UUID, version int64) (*domain.VersionRecord, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.GetVersion(ctx, s.versioned(&contact), version)
}

// Latest returns the contact's newest version, or nil when it has none.
func (s *Service) Latest(ctx context.Context, id uuid.UUID) (*domain.VersionRecord, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.GetLatestVersion(ctx, s.versioned(&contact))
}

// Diff compares two versions of the contact, or a version against the live
// state when to is nil.
func (s *Service) Diff(ctx context.Context, id uuid.UUID, from, to *int64) (domain.Diff, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.GetDiff(ctx, s.versioned(&contact), from, to)
}

// Revert restores the tracked fields of the given version as a new versioned
// update and returns the contact plus the new version record.
func (s *Service) Revert(ctx context.Context, id uuid.UUID, version int64) (domain.Contact, *domain.VersionRecord, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Contact{}, nil, err
	}

	record, err := s.engine.RevertToVersion(ctx, s.versioned(&contact), version)
	if err != nil {
		return domain.Contact{}, nil, err
	}

	return contact, record, nil
}

// FieldsHistory returns the per-field change history for the requested fields.
func (s *Service) FieldsHistory(ctx context.Context, id uuid.UUID, fields []string) (map[string][]domain.FieldVersion, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.FieldsHistory(ctx, s.versioned(&contact), fields)
}

func (s *Service) versioned(contact *domain.Contact) versioning.Versioned {
	return &versionedContact{contact: contact, repo: s.repo}
}

// versionedContact adapts a contact to the engine's capability contract.
type versionedContact struct {
	contact *domain.Contact
	repo    repository.ContactRepository
}

func (v *versionedContact) VersionRef() domain.Ref {
	return domain.Ref{Kind: Kind, ID: v.contact.ID.String()}
}

func (v *versionedContact) PersistedFields() map[string]any {
	fields := make(map[string]any, len(v.contact.Fields))
	for key, value := range v.contact.Fields {
		fields[key] = value
	}
	return fields
}

func (v *versionedContact) Apply(changes map[string]any) {
	v.contact.SetFields(changes)
}

func (v *versionedContact) Save(ctx context.Context, tx pgx.Tx) error {
	return v.repo.Save(ctx, tx, v.contact)
}
