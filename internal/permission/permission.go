package permission

import (
	"time"

	"github.com/google/uuid"
	permissionDatamodel "github.com/softeno/permission-template/internal/core/datamodel/permission"
)

type Permission struct {
	ID           int64     `json:"id"`
	UUID         uuid.UUID `json:"uuid"`
	Version      int64     `json:"version"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CreatedDate  time.Time `json:"created_date"`
	ModifiedDate time.Time `json:"modified_date"`
	CreatedBy    string    `json:"created_by"`
	ModifiedBy   string    `json:"modified_by"`
}

// NewPermission prepares an unsaved permission with a fresh external id.
func NewPermission(name, description, actor string, now time.Time) *Permission {
	return &Permission{
		UUID:         uuid.New(),
		Version:      0,
		Name:         name,
		Description:  description,
		CreatedDate:  now,
		ModifiedDate: now,
		CreatedBy:    actor,
		ModifiedBy:   actor,
	}
}

// Equal compares by external identifier only; every other field may change
// between reads of the same logical record.
func (p *Permission) Equal(other *Permission) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.UUID == other.UUID
}

func (p *Permission) IsPersisted() bool {
	return p.ID != 0
}

func (p *Permission) ToResponse() PermissionResponse {
	return PermissionResponse{
		ID:           p.ID,
		UUID:         p.UUID.String(),
		Version:      p.Version,
		Name:         p.Name,
		Description:  p.Description,
		CreatedDate:  p.CreatedDate,
		ModifiedDate: p.ModifiedDate,
		CreatedBy:    p.CreatedBy,
		ModifiedBy:   p.ModifiedBy,
	}
}

func ToDataModel(p *Permission) *permissionDatamodel.Permission {
	version, name, description := p.Version, p.Name, p.Description
	dm := &permissionDatamodel.Permission{
		UUID:         p.UUID,
		Version:      &version,
		Name:         &name,
		Description:  &description,
		CreatedDate:  timePtr(p.CreatedDate),
		ModifiedDate: timePtr(p.ModifiedDate),
		CreatedBy:    stringPtr(p.CreatedBy),
		ModifiedBy:   stringPtr(p.ModifiedBy),
	}
	if p.IsPersisted() {
		id := p.ID
		dm.ID = &id
	}
	return dm
}

func FromDataModel(dm *permissionDatamodel.Permission) *Permission {
	p := &Permission{UUID: dm.UUID}
	if dm.ID != nil {
		p.ID = *dm.ID
	}
	if dm.Version != nil {
		p.Version = *dm.Version
	}
	if dm.Name != nil {
		p.Name = *dm.Name
	}
	if dm.Description != nil {
		p.Description = *dm.Description
	}
	if dm.CreatedDate != nil {
		p.CreatedDate = dm.CreatedDate.UTC()
	}
	if dm.ModifiedDate != nil {
		p.ModifiedDate = dm.ModifiedDate.UTC()
	}
	if dm.CreatedBy != nil {
		p.CreatedBy = *dm.CreatedBy
	}
	if dm.ModifiedBy != nil {
		p.ModifiedBy = *dm.ModifiedBy
	}
	return p
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
