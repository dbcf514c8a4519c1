package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/core/batch"
	permissionDatamodel "github.com/softeno/permission-template/internal/core/datamodel/permission"
	"github.com/softeno/permission-template/internal/core/events"
)

// ErrNotFound is returned by repositories when a lookup by id finds no row.
var ErrNotFound = errors.New("permission not found")

// Changes are the fields written by a conditional update. Nil pointers leave
// the stored value alone.
type Changes struct {
	Name         *string
	Description  *string
	ModifiedBy   string
	ModifiedDate time.Time
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*permissionDatamodel.Permission, error)
	Find(ctx context.Context, query ListQuery) ([]*permissionDatamodel.Permission, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	FindVersionByID(ctx context.Context, id int64) (int64, error)
	UpdateIfVersion(ctx context.Context, id, expectedVersion int64, changes Changes) (int64, error)
	InsertAll(ctx context.Context, permissions []*permissionDatamodel.Permission) (batch.IDs, error)
	UpdateAll(ctx context.Context, permissions []*permissionDatamodel.Permission) (batch.IDs, error)
	Reconcile(ctx context.Context, permissions []*permissionDatamodel.Permission) (batch.IDs, error)
	Delete(ctx context.Context, id int64) (bool, error)
	WithTransaction(ctx context.Context, fn func(repo RepositoryAPI) error) error
}

// EventPublisher is satisfied by *events.EventBus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Recorder receives domain metrics. A nil Recorder is allowed.
type Recorder interface {
	ObserveConflict(operation string)
	ObserveBatch(operation string, size int)
}

type Service struct {
	repo      RepositoryAPI
	publisher EventPublisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, publisher EventPublisher, recorder Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the audit clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get permission", "error", err, "permission_id", id)
		return nil, internal.TranslateDBError(err, "failed to get permission")
	}
	if dm == nil {
		return nil, internal.ErrPermissionNotFound
	}
	return FromDataModel(dm), nil
}

func (s *Service) ListPermissions(ctx context.Context, query ListQuery) ([]*Permission, error) {
	if appErr := query.Normalize(); appErr != nil {
		return nil, appErr
	}

	rows, err := s.repo.Find(ctx, query)
	if err != nil {
		s.logger.Error("failed to list permissions", "error", err)
		return nil, internal.TranslateDBError(err, "failed to list permissions")
	}

	permissions := make([]*Permission, 0, len(rows))
	for _, row := range rows {
		permissions = append(permissions, FromDataModel(row))
	}
	return permissions, nil
}

func (s *Service) CountPermissions(ctx context.Context, filter Filter) (int64, error) {
	if appErr := filter.Validate(); appErr != nil {
		return 0, appErr
	}
	count, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count permissions", "error", err)
		return 0, internal.TranslateDBError(err, "failed to count permissions")
	}
	return count, nil
}

// CreatePermission inserts one permission through the batch insert path and
// announces it on the event bus. Publishing is best-effort.
func (s *Service) CreatePermission(ctx context.Context, dto CreatePermissionDTO, actor string) (*Permission, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	actor = actorOrSystem(actor)

	p := NewPermission(dto.Name, dto.Description, actor, s.now())
	if dto.UUID != nil && *dto.UUID != uuid.Nil {
		p.UUID = *dto.UUID
	}

	ids, err := s.repo.InsertAll(ctx, []*permissionDatamodel.Permission{ToDataModel(p)})
	if err != nil {
		s.logger.Error("failed to create permission", "error", err, "name", dto.Name)
		return nil, s.translate(err, "failed to create permission")
	}
	s.observeBatch("insert", 1)

	created, err := s.GetPermission(ctx, ids[p.UUID])
	if err != nil {
		return nil, err
	}

	s.logger.Info("permission created", "permission_id", created.ID, "uuid", created.UUID, "actor", actor)

	if s.publisher != nil {
		event := events.NewPermissionCreatedEvent(created.ID, created.UUID.String(), created.Name, actor, internal.TraceIDFromContext(ctx))
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish permission created event", "error", err, "permission_id", created.ID)
		}
	}

	return created, nil
}

// UpdatePermission applies a version-checked update. The stored version is
// read first; a mismatch is a conflict and nothing is written. The write is
// guarded by the same version so a concurrent writer between the read and
// the write also yields a conflict.
func (s *Service) UpdatePermission(ctx context.Context, id int64, dto UpdatePermissionDTO, actor string) (*Permission, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	actor = actorOrSystem(actor)
	asserted := *dto.Version

	var updated *permissionDatamodel.Permission
	err := s.repo.WithTransaction(ctx, func(repo RepositoryAPI) error {
		stored, err := repo.FindVersionByID(ctx, id)
		if err != nil {
			return err
		}
		if stored != asserted {
			s.logger.Warn("version mismatch", "permission_id", id, "stored_version", stored, "asserted_version", asserted)
			return internal.ErrVersionMismatch
		}

		affected, err := repo.UpdateIfVersion(ctx, id, asserted, Changes{
			Name:         &dto.Name,
			Description:  &dto.Description,
			ModifiedBy:   actor,
			ModifiedDate: s.now(),
		})
		if err != nil {
			return err
		}
		if affected != 1 {
			s.logger.Warn("lost update race", "permission_id", id, "asserted_version", asserted, "rows_affected", affected)
			return internal.ErrVersionMismatch
		}

		updated, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, internal.ErrVersionMismatch) {
			s.observeConflict("update")
		} else {
			s.logger.Error("failed to update permission", "error", err, "permission_id", id)
		}
		return nil, s.translate(err, "failed to update permission")
	}

	s.logger.Info("permission updated", "permission_id", id, "version", *updated.Version, "actor", actor)
	return FromDataModel(updated), nil
}

// DeletePermission removes a permission regardless of its version.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete permission", "error", err, "permission_id", id)
		return internal.TranslateDBError(err, "failed to delete permission")
	}
	if !deleted {
		return internal.ErrPermissionNotFound
	}
	s.logger.Info("permission deleted", "permission_id", id)
	return nil
}

// ImportPermissions reconciles a batch by external id: items without an id
// are inserted, the rest are partially updated. The whole batch commits or
// none of it does.
func (s *Service) ImportPermissions(ctx context.Context, items []BatchItemDTO, actor string) (batch.IDs, error) {
	if len(items) > MaxBatchSize {
		s.logger.Warn("batch too large", "size", len(items), "max", MaxBatchSize)
		return nil, internal.NewValidationFieldError("items",
			fmt.Sprintf("batch must not exceed %d items", MaxBatchSize), internal.ErrCodeInvalidBatch)
	}
	actor = actorOrSystem(actor)
	now := s.now()

	entities := make([]*permissionDatamodel.Permission, 0, len(items))
	for i, item := range items {
		if appErr := item.Validate(); appErr != nil {
			s.logger.Warn("invalid batch item", "index", i, "error", appErr.GetDetailedMessage())
			return nil, appErr
		}
		entities = append(entities, batchEntity(item, actor, now))
	}

	ids, err := s.repo.Reconcile(ctx, entities)
	if err != nil {
		s.logger.Error("failed to reconcile permissions", "error", err, "size", len(items))
		return nil, s.translate(err, "failed to import permissions")
	}
	s.observeBatch("reconcile", len(items))

	s.logger.Info("permissions reconciled", "size", len(items), "actor", actor)
	return ids, nil
}

// batchEntity stamps the modification audit only on items that change a
// field, so an update carrying nothing but its identifiers stays a no-op.
func batchEntity(item BatchItemDTO, actor string, now time.Time) *permissionDatamodel.Permission {
	entity := &permissionDatamodel.Permission{
		ID:          item.ID,
		UUID:        item.UUID,
		Name:        item.Name,
		Description: item.Description,
	}
	if item.ID == nil || item.Name != nil || item.Description != nil {
		modifiedBy, modifiedDate := actor, now
		entity.ModifiedBy = &modifiedBy
		entity.ModifiedDate = &modifiedDate
	}
	if item.ID == nil {
		version, createdBy, createdDate := int64(0), actor, now
		entity.Version = &version
		entity.CreatedBy = &createdBy
		entity.CreatedDate = &createdDate
	}
	return entity
}

func (s *Service) translate(err error, message string) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, batch.ErrUnmatchedKey):
		return internal.ErrPermissionNotFound
	case errors.Is(err, batch.ErrInvalidOperation):
		return internal.NewInvalidOperationError(err.Error(), err)
	}
	return internal.TranslateDBError(err, message)
}

func (s *Service) observeConflict(operation string) {
	if s.recorder != nil {
		s.recorder.ObserveConflict(operation)
	}
}

func (s *Service) observeBatch(operation string, size int) {
	if s.recorder != nil {
		s.recorder.ObserveBatch(operation, size)
	}
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return internal.SystemActor
	}
	return actor
}
