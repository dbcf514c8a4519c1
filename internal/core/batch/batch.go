// Package batch builds and runs single-statement multi-row INSERT and UPDATE
// operations for entities keyed by a stable external identifier.
//
// Column discovery is static: every entity type supplies a Descriptor listing
// its columns and accessors. A column whose accessor reports "not set" for an
// entity is left out of that entity's contribution, which is how partial
// updates are expressed.
package batch

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var (
	// ErrInvalidOperation rejects a whole batch whose input violates the
	// insert or update preconditions.
	ErrInvalidOperation = errors.New("invalid batch operation")
	// ErrInvalidDescriptor is a programming error in an entity descriptor.
	ErrInvalidDescriptor = errors.New("invalid batch descriptor")
	// ErrUnmatchedKey means the store did not return a row for an input entity.
	ErrUnmatchedKey = errors.New("batch result missing key")
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Column maps one entity field to a table column. Value returns the value to
// bind and whether the entity set the field at all.
type Column[T any] struct {
	Name       string
	Value      func(T) (any, bool)
	InsertOnly bool
}

// Descriptor is the static column metadata for one entity type.
type Descriptor[T any] struct {
	Table     string
	IDColumn  string
	KeyColumn string
	// VersionColumn, when set, is incremented by one on every updated row.
	VersionColumn string
	ID            func(T) *int64
	Key           func(T) uuid.UUID
	Columns       []Column[T]
}

func (d Descriptor[T]) Validate() error {
	if !identifier.MatchString(d.Table) {
		return fmt.Errorf("%w: bad table name %q", ErrInvalidDescriptor, d.Table)
	}
	if !identifier.MatchString(d.IDColumn) || !identifier.MatchString(d.KeyColumn) {
		return fmt.Errorf("%w: id and key columns are required", ErrInvalidDescriptor)
	}
	if d.IDColumn == d.KeyColumn {
		return fmt.Errorf("%w: id and key column must differ", ErrInvalidDescriptor)
	}
	if d.ID == nil || d.Key == nil {
		return fmt.Errorf("%w: id and key accessors are required", ErrInvalidDescriptor)
	}
	seen := map[string]bool{d.IDColumn: true, d.KeyColumn: true}
	if d.VersionColumn != "" {
		if !identifier.MatchString(d.VersionColumn) {
			return fmt.Errorf("%w: bad version column %q", ErrInvalidDescriptor, d.VersionColumn)
		}
		seen[d.VersionColumn] = true
	}
	for _, col := range d.Columns {
		if !identifier.MatchString(col.Name) {
			return fmt.Errorf("%w: bad column name %q", ErrInvalidDescriptor, col.Name)
		}
		if col.Name == d.VersionColumn {
			if !col.InsertOnly {
				return fmt.Errorf("%w: version column %q must be insert-only", ErrInvalidDescriptor, col.Name)
			}
		} else if seen[col.Name] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidDescriptor, col.Name)
		}
		if col.Value == nil {
			return fmt.Errorf("%w: column %q has no accessor", ErrInvalidDescriptor, col.Name)
		}
		seen[col.Name] = true
	}
	return nil
}

// IDs maps an external identifier to its database id.
type IDs map[uuid.UUID]int64

// Merge copies other into ids.
func (ids IDs) Merge(other IDs) {
	for k, v := range other {
		ids[k] = v
	}
}

// Statement is a parameterized SQL statement using ? placeholders.
type Statement struct {
	SQL  string
	Args []any
}
