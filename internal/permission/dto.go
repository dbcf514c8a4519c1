package permission

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/core/common/validation"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxBatchSize    = 1000
)

// sortable maps accepted sort keys to columns.
var sortable = map[string]string{
	"id":            "id",
	"name":          "name",
	"created_date":  "created_date",
	"createdDate":   "created_date",
	"modified_date": "modified_date",
	"modifiedDate":  "modified_date",
}

type CreatePermissionDTO struct {
	UUID        *uuid.UUID `json:"uuid,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

func (dto CreatePermissionDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	validation.PermissionName(v, dto.Name)
	validation.PermissionDescription(v, dto.Description)
	return v.Validate()
}

// UpdatePermissionDTO replaces the mutable fields of a permission. Version is
// the version the caller last read.
type UpdatePermissionDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     *int64 `json:"version"`
}

func (dto UpdatePermissionDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	validation.PermissionName(v, dto.Name)
	validation.PermissionDescription(v, dto.Description)
	validation.Version(v, dto.Version)
	return v.Validate()
}

// BatchItemDTO is one entry of a batch import. Items without an id are
// inserted; items with one are updated, touching only the fields present.
type BatchItemDTO struct {
	UUID        uuid.UUID `json:"uuid"`
	ID          *int64    `json:"id,omitempty"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
}

func (dto BatchItemDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("uuid", dto.UUID).Custom(func(value interface{}) *internal.AppError {
		if value.(uuid.UUID) == uuid.Nil {
			return internal.NewValidationFieldError("uuid", "uuid is required", internal.ErrCodeValidationFailed)
		}
		return nil
	})
	if dto.ID == nil {
		validation.PermissionName(v, dto.Name)
		validation.PermissionDescription(v, dto.Description)
	} else {
		validation.PartialPermission(v, dto.Name, dto.Description)
	}
	return v.Validate()
}

// Filter narrows listing and counting.
type Filter struct {
	Search      string
	CreatedBy   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

func (f Filter) Validate() *internal.AppError {
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return internal.NewValidationFieldError("createdFrom", "createdFrom must not be after createdTo", internal.ErrCodeInvalidQuery)
	}
	return nil
}

type ListQuery struct {
	Filter
	Page      int
	Size      int
	Sort      string
	Direction string
}

// Normalize applies defaults and validates paging and sorting. Sort is
// rewritten to a column name.
func (q *ListQuery) Normalize() *internal.AppError {
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Page < 0 {
		return internal.NewValidationFieldError("page", "page must not be negative", internal.ErrCodeInvalidQuery)
	}
	if q.Size < 1 || q.Size > MaxPageSize {
		return internal.NewValidationFieldError("size", fmt.Sprintf("size must be between 1 and %d", MaxPageSize), internal.ErrCodeInvalidQuery)
	}
	if q.Sort == "" {
		q.Sort = "id"
	}
	column, ok := sortable[q.Sort]
	if !ok {
		return internal.NewValidationFieldError("sort", fmt.Sprintf("unsupported sort field %q", q.Sort), internal.ErrCodeInvalidQuery)
	}
	q.Sort = column

	switch strings.ToUpper(q.Direction) {
	case "", "ASC":
		q.Direction = "ASC"
	case "DESC":
		q.Direction = "DESC"
	default:
		return internal.NewValidationFieldError("direction", "direction must be ASC or DESC", internal.ErrCodeInvalidQuery)
	}
	return q.Filter.Validate()
}

func (q ListQuery) Offset() int {
	return q.Page * q.Size
}

func (q ListQuery) Descending() bool {
	return q.Direction == "DESC"
}

type PermissionResponse struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid"`
	Version      int64     `json:"version"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CreatedDate  time.Time `json:"created_date"`
	ModifiedDate time.Time `json:"modified_date"`
	CreatedBy    string    `json:"created_by"`
	ModifiedBy   string    `json:"modified_by"`
}

type PermissionsResponse struct {
	Permissions []PermissionResponse `json:"permissions"`
	Page        int                  `json:"page"`
	Size        int                  `json:"size"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type BatchResponse struct {
	IDs map[string]int64 `json:"ids"`
}
