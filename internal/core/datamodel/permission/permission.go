package permission

import (
	"time"

	"github.com/google/uuid"
	"github.com/softeno/permission-template/internal/core/batch"
)

// Permission is the persisted row. Pointer fields distinguish "not set"
// from a stored value, which the batch engine relies on for partial updates.
type Permission struct {
	ID           *int64     `gorm:"column:id;primaryKey"`
	UUID         uuid.UUID  `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	Version      *int64     `gorm:"column:version;not null;default:0"`
	Name         *string    `gorm:"column:name;uniqueIndex;not null"`
	Description  *string    `gorm:"column:description;not null"`
	CreatedDate  *time.Time `gorm:"column:created_date"`
	ModifiedDate *time.Time `gorm:"column:modified_date"`
	CreatedBy    *string    `gorm:"column:created_by"`
	ModifiedBy   *string    `gorm:"column:modified_by"`
}

func (Permission) TableName() string {
	return "permissions"
}

// Key is the reconciliation key.
func (p *Permission) Key() uuid.UUID {
	return p.UUID
}

// Equal compares by external identifier only.
func (p *Permission) Equal(other *Permission) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.UUID == other.UUID
}

func optional[V any](v *V) (any, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

// Descriptor lists the permissions columns in table order.
var Descriptor = batch.Descriptor[*Permission]{
	Table:         "permissions",
	IDColumn:      "id",
	KeyColumn:     "uuid",
	VersionColumn: "version",
	ID:            func(p *Permission) *int64 { return p.ID },
	Key:           (*Permission).Key,
	Columns: []batch.Column[*Permission]{
		{Name: "version", Value: func(p *Permission) (any, bool) { return optional(p.Version) }, InsertOnly: true},
		{Name: "name", Value: func(p *Permission) (any, bool) { return optional(p.Name) }},
		{Name: "description", Value: func(p *Permission) (any, bool) { return optional(p.Description) }},
		{Name: "created_date", Value: func(p *Permission) (any, bool) { return optional(p.CreatedDate) }, InsertOnly: true},
		{Name: "modified_date", Value: func(p *Permission) (any, bool) { return optional(p.ModifiedDate) }},
		{Name: "created_by", Value: func(p *Permission) (any, bool) { return optional(p.CreatedBy) }, InsertOnly: true},
		{Name: "modified_by", Value: func(p *Permission) (any, bool) { return optional(p.ModifiedBy) }},
	},
}

var Engine = batch.MustEngine(Descriptor)
