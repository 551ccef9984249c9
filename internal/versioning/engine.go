package versioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/versioned/internal/auth"
	"github.com/rpattn/versioned/internal/domain"
	"github.com/rpattn/versioned/internal/repository"
)

// ErrVersionNotFound is returned by RevertToVersion when the target version
// does not exist. Read-side lookups report absence as a nil record instead.
var ErrVersionNotFound = errors.New("version not found")

// Versioned is the capability contract an entity type grants the engine:
// report a stable polymorphic identity, report persisted field state, stage
// changes, and persist staged state inside the engine's transaction.
type Versioned interface {
	VersionRef() domain.Ref
	PersistedFields() map[string]any
	Apply(changes map[string]any)
	Save(ctx context.Context, tx pgx.Tx) error
}

// FieldExcluder lets an entity type keep additional fields out of snapshots,
// beyond the built-in bookkeeping timestamps.
type FieldExcluder interface {
	ExcludedVersionFields() []string
}

// ActorResolver returns the principal a change is attributed to, or nil for
// system-initiated changes.
type ActorResolver func(ctx context.Context) *domain.Ref

// CommitHook runs after a version record has committed.
type CommitHook func(ctx context.Context, record domain.VersionRecord)

// TxRunner executes a function within one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Engine makes update-plus-version atomic and serves the derived read views.
type Engine struct {
	runner       TxRunner
	store        repository.VersionStore
	resolveActor ActorResolver
	registry     *Registry
	afterCommit  []CommitHook
}

// Option customizes an Engine.
type Option func(*Engine)

// WithActorResolver replaces the default context-based actor resolution.
func WithActorResolver(fn ActorResolver) Option {
	return func(e *Engine) {
		if fn != nil {
			e.resolveActor = fn
		}
	}
}

// WithRegistry wires a registry for materializing changer references.
func WithRegistry(registry *Registry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithCommitHook registers a hook invoked after each committed version.
func WithCommitHook(hook CommitHook) Option {
	return func(e *Engine) {
		if hook != nil {
			e.afterCommit = append(e.afterCommit, hook)
		}
	}
}

// New creates an engine over the given transaction runner and version store.
func New(runner TxRunner, store repository.VersionStore, opts ...Option) *Engine {
	engine := &Engine{
		runner:       runner,
		store:        store,
		resolveActor: defaultActorResolver,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// UpdateVersioned applies the staged changes to the entity, persists it, and
// appends a snapshot of the post-save tracked state as the next version, all
// inside one transaction. An empty change set is a successful no-op that
// creates nothing. The committed record is returned directly so callers never
// consult a stale cached view.
//
// If a concurrent writer claims the same version number first, the store's
// uniqueness constraint rejects the append, the whole transaction including
// the entity save rolls back, and the error satisfies
// errors.Is(err, repository.ErrVersionConflict). The engine never retries.
func (e *Engine) UpdateVersioned(ctx context.Context, entity Versioned, changes map[string]any) (*domain.VersionRecord, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	var record domain.VersionRecord
	err := e.runner.WithTx(ctx, func(tx pgx.Tx) error {
		entity.Apply(changes)
		if err := entity.Save(ctx, tx); err != nil {
			return fmt.Errorf("failed to save entity %s: %w", entity.VersionRef(), err)
		}

		store := e.store.WithTx(tx)
		maxVersion, err := store.MaxVersion(ctx, entity.VersionRef())
		if err != nil {
			return err
		}

		record = domain.VersionRecord{
			Entity:   entity.VersionRef(),
			Changer:  e.resolveActor(ctx),
			Version:  maxVersion + 1,
			Snapshot: CaptureSnapshot(entity),
		}
		record, err = store.Append(ctx, record)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, hook := range e.afterCommit {
		hook(ctx, record)
	}

	return &record, nil
}

// GetVersion returns the given version of the entity, or nil when absent.
func (e *Engine) GetVersion(ctx context.Context, entity Versioned, version int64) (*domain.VersionRecord, error) {
	return e.store.Get(ctx, entity.VersionRef(), version)
}

// GetLatestVersion returns the entity's newest version, or nil when it has none.
func (e *Engine) GetLatestVersion(ctx context.Context, entity Versioned) (*domain.VersionRecord, error) {
	return e.store.Latest(ctx, entity.VersionRef())
}

// GetVersions returns all versions of the entity, ascending.
func (e *Engine) GetVersions(ctx context.Context, entity Versioned) ([]domain.VersionRecord, error) {
	return e.store.List(ctx, entity.VersionRef())
}

// GetDiff compares two snapshots of the entity. A nil fromVersion means the
// empty state, a nil toVersion means the current live state. A version that
// does not exist also compares as the empty state.
func (e *Engine) GetDiff(ctx context.Context, entity Versioned, fromVersion, toVersion *int64) (domain.Diff, error) {
	from := domain.Snapshot{}
	if fromVersion != nil {
		record, err := e.store.Get(ctx, entity.VersionRef(), *fromVersion)
		if err != nil {
			return nil, err
		}
		if record != nil {
			from = record.Snapshot
		}
	}

	to := domain.Snapshot{}
	if toVersion == nil {
		to = CaptureSnapshot(entity)
	} else {
		record, err := e.store.Get(ctx, entity.VersionRef(), *toVersion)
		if err != nil {
			return nil, err
		}
		if record != nil {
			to = record.Snapshot
		}
	}

	return domain.ComputeDiff(from, to), nil
}

// RevertToVersion stages the target version's tracked fields onto the entity
// and runs them through UpdateVersioned, so a revert moves the history
// forward with a new version rather than rewinding the counter.
func (e *Engine) RevertToVersion(ctx context.Context, entity Versioned, version int64) (*domain.VersionRecord, error) {
	target, err := e.store.Get(ctx, entity.VersionRef(), version)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("revert %s to version %d: %w", entity.VersionRef(), version, ErrVersionNotFound)
	}

	excluded := excludedFields(entity)
	changes := make(map[string]any, len(target.Snapshot))
	for field, value := range target.Snapshot {
		if shouldTrackField(field, excluded) {
			changes[field] = value
		}
	}

	return e.UpdateVersioned(ctx, entity, changes)
}

// FieldHistory returns the recorded values of one field across the entity's
// versions, ascending. Versions where the field is absent or null are skipped.
func (e *Engine) FieldHistory(ctx context.Context, entity Versioned, field string) ([]domain.FieldVersion, error) {
	records, err := e.store.List(ctx, entity.VersionRef())
	if err != nil {
		return nil, err
	}

	history := []domain.FieldVersion{}
	for _, record := range records {
		value, ok := record.Snapshot[field]
		if !ok || value == nil {
			continue
		}
		history = append(history, domain.FieldVersion{
			Version:   record.Version,
			Value:     value,
			ChangedAt: record.CreatedAt,
			Changer:   record.Changer,
		})
	}

	return history, nil
}

// FieldsHistory computes FieldHistory independently for each requested field.
func (e *Engine) FieldsHistory(ctx context.Context, entity Versioned, fields []string) (map[string][]domain.FieldVersion, error) {
	history := make(map[string][]domain.FieldVersion, len(fields))
	for _, field := range fields {
		fieldHistory, err := e.FieldHistory(ctx, entity, field)
		if err != nil {
			return nil, err
		}
		history[field] = fieldHistory
	}
	return history, nil
}

// LoadChanger materializes the actor recorded on a version through the
// registry. A record without a changer yields nil.
func (e *Engine) LoadChanger(ctx context.Context, record domain.VersionRecord) (any, error) {
	if record.Changer == nil {
		return nil, nil
	}
	if e.registry == nil {
		return nil, fmt.Errorf("no changer registry configured")
	}
	return e.registry.Load(ctx, *record.Changer)
}

// CaptureSnapshot builds the tracked snapshot of the entity's current
// persisted field state.
func CaptureSnapshot(entity Versioned) domain.Snapshot {
	excluded := excludedFields(entity)
	snapshot := domain.Snapshot{}
	for field, value := range entity.PersistedFields() {
		if shouldTrackField(field, excluded) {
			snapshot[field] = value
		}
	}
	return snapshot
}

// Bookkeeping timestamp columns are never part of a snapshot.
var bookkeepingFields = []string{"created_at", "updated_at"}

func excludedFields(entity Versioned) map[string]struct{} {
	excluded := make(map[string]struct{}, len(bookkeepingFields))
	for _, field := range bookkeepingFields {
		excluded[field] = struct{}{}
	}
	if excluder, ok := entity.(FieldExcluder); ok {
		for _, field := range excluder.ExcludedVersionFields() {
			excluded[field] = struct{}{}
		}
	}
	return excluded
}

func shouldTrackField(field string, excluded map[string]struct{}) bool {
	_, skip := excluded[field]
	return !skip
}

func defaultActorResolver(ctx context.Context) *domain.Ref {
	if actor, ok := auth.ActorFromContext(ctx); ok {
		return &actor
	}
	return nil
}
