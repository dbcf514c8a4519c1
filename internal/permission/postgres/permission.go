package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/softeno/permission-template/internal/core/batch"
	permissionDatamodel "github.com/softeno/permission-template/internal/core/datamodel/permission"
	"github.com/softeno/permission-template/internal/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) permission.RepositoryAPI {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) GetByID(ctx context.Context, id int64) (*permissionDatamodel.Permission, error) {
	var p permissionDatamodel.Permission
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PermissionRepository) Find(ctx context.Context, query permission.ListQuery) ([]*permissionDatamodel.Permission, error) {
	var permissions []*permissionDatamodel.Permission
	err := r.filtered(ctx, query.Filter).
		Order(clause.OrderByColumn{Column: clause.Column{Name: query.Sort}, Desc: query.Descending()}).
		Order("id ASC").
		Limit(query.Size).
		Offset(query.Offset()).
		Find(&permissions).Error
	return permissions, err
}

func (r *PermissionRepository) Count(ctx context.Context, filter permission.Filter) (int64, error) {
	var count int64
	err := r.filtered(ctx, filter).Count(&count).Error
	return count, err
}

func (r *PermissionRepository) filtered(ctx context.Context, filter permission.Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&permissionDatamodel.Permission{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}
	if filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_date >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_date <= ?", *filter.CreatedTo)
	}
	return q
}

// FindVersionByID reads only the version column.
func (r *PermissionRepository) FindVersionByID(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := r.db.WithContext(ctx).
		Model(&permissionDatamodel.Permission{}).
		Select("version").
		Where("id = ?", id).
		Row().
		Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, permission.ErrNotFound
		}
		return 0, err
	}
	return version, nil
}

// UpdateIfVersion writes changes only while the stored version still equals
// expectedVersion, and advances it by one. It returns the affected row count;
// zero means another writer got there first or the row is gone.
func (r *PermissionRepository) UpdateIfVersion(ctx context.Context, id, expectedVersion int64, changes permission.Changes) (int64, error) {
	updates := map[string]interface{}{
		"version":       expectedVersion + 1,
		"modified_by":   changes.ModifiedBy,
		"modified_date": changes.ModifiedDate,
	}
	if changes.Name != nil {
		updates["name"] = *changes.Name
	}
	if changes.Description != nil {
		updates["description"] = *changes.Description
	}

	result := r.db.WithContext(ctx).
		Model(&permissionDatamodel.Permission{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *PermissionRepository) InsertAll(ctx context.Context, permissions []*permissionDatamodel.Permission) (batch.IDs, error) {
	return permissionDatamodel.Engine.InsertAll(ctx, batch.NewGormExecutor(r.db), permissions)
}

// UpdateAll runs in a transaction so an id/uuid mismatch leaves no write behind.
func (r *PermissionRepository) UpdateAll(ctx context.Context, permissions []*permissionDatamodel.Permission) (batch.IDs, error) {
	var ids batch.IDs
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ids, err = permissionDatamodel.Engine.UpdateAll(ctx, batch.NewGormExecutor(tx), permissions)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Reconcile runs the insert and update statements in one transaction.
func (r *PermissionRepository) Reconcile(ctx context.Context, permissions []*permissionDatamodel.Permission) (batch.IDs, error) {
	var ids batch.IDs
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ids, err = permissionDatamodel.Engine.Reconcile(ctx, batch.NewGormExecutor(tx), permissions)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PermissionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&permissionDatamodel.Permission{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PermissionRepository) WithTransaction(ctx context.Context, fn func(repo permission.RepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PermissionRepository{db: tx})
	})
}
