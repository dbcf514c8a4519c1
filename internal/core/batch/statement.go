package batch

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Engine generates and runs batch statements for one entity type.
type Engine[T any] struct {
	desc Descriptor[T]
}

func NewEngine[T any](desc Descriptor[T]) (*Engine[T], error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &Engine[T]{desc: desc}, nil
}

// MustEngine is NewEngine for package-level descriptors; a bad descriptor
// panics at init.
func MustEngine[T any](desc Descriptor[T]) *Engine[T] {
	e, err := NewEngine(desc)
	if err != nil {
		panic(err)
	}
	return e
}

// BuildInsert renders one multi-row INSERT for entities that have no id yet.
// The column list is the key column plus every column set by at least one
// entity; entities that leave such a column unset bind NULL.
func (e *Engine[T]) BuildInsert(entities []T) (Statement, error) {
	if err := e.checkKeys(entities); err != nil {
		return Statement{}, err
	}
	for _, entity := range entities {
		if e.desc.ID(entity) != nil {
			return Statement{}, fmt.Errorf("%w: cannot insert entities with non-null id", ErrInvalidOperation)
		}
	}

	active := e.activeColumns(entities, false)

	names := make([]string, 0, len(active)+1)
	names = append(names, e.desc.KeyColumn)
	for _, col := range active {
		names = append(names, col.Name)
	}

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ") + ")"
	tuples := make([]string, 0, len(entities))
	args := make([]any, 0, len(entities)*len(names))
	for _, entity := range entities {
		args = append(args, e.desc.Key(entity))
		for _, col := range active {
			value, ok := col.Value(entity)
			if !ok {
				value = nil
			}
			args = append(args, value)
		}
		tuples = append(tuples, tuple)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING %s, %s",
		e.desc.Table,
		strings.Join(names, ", "),
		strings.Join(tuples, ", "),
		e.desc.IDColumn,
		e.desc.KeyColumn,
	)
	return Statement{SQL: sql, Args: args}, nil
}

// BuildUpdate renders one UPDATE keyed by the external identifier. Each
// column set by at least one entity becomes a CASE expression whose ELSE
// branch keeps the stored value. The boolean is false when no entity sets
// any updatable column; nothing should be executed then.
func (e *Engine[T]) BuildUpdate(entities []T) (Statement, bool, error) {
	if err := e.checkKeys(entities); err != nil {
		return Statement{}, false, err
	}
	for _, entity := range entities {
		if e.desc.ID(entity) == nil {
			return Statement{}, false, fmt.Errorf("%w: cannot update entities with null id", ErrInvalidOperation)
		}
	}

	active := e.activeColumns(entities, true)
	if len(active) == 0 {
		return Statement{}, false, nil
	}

	var args []any
	sets := make([]string, 0, len(active)+1)
	for _, col := range active {
		var b strings.Builder
		fmt.Fprintf(&b, "%s = CASE %s", col.Name, e.desc.KeyColumn)
		for _, entity := range entities {
			value, ok := col.Value(entity)
			if !ok {
				continue
			}
			b.WriteString(" WHEN ? THEN ?")
			args = append(args, e.desc.Key(entity), value)
		}
		fmt.Fprintf(&b, " ELSE %s END", col.Name)
		sets = append(sets, b.String())
	}
	if e.desc.VersionColumn != "" {
		sets = append(sets, fmt.Sprintf("%s = %s + 1", e.desc.VersionColumn, e.desc.VersionColumn))
	}

	placeholders := make([]string, 0, len(entities))
	for _, entity := range entities {
		placeholders = append(placeholders, "?")
		args = append(args, e.desc.Key(entity))
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s IN (%s) RETURNING %s, %s",
		e.desc.Table,
		strings.Join(sets, ", "),
		e.desc.KeyColumn,
		strings.Join(placeholders, ", "),
		e.desc.IDColumn,
		e.desc.KeyColumn,
	)
	return Statement{SQL: sql, Args: args}, true, nil
}

// Partition splits entities into those without an id (insert) and those
// with one (update), keeping input order.
func (e *Engine[T]) Partition(entities []T) (inserts, updates []T) {
	for _, entity := range entities {
		if e.desc.ID(entity) == nil {
			inserts = append(inserts, entity)
		} else {
			updates = append(updates, entity)
		}
	}
	return inserts, updates
}

func (e *Engine[T]) activeColumns(entities []T, forUpdate bool) []Column[T] {
	var active []Column[T]
	for _, col := range e.desc.Columns {
		if forUpdate && col.InsertOnly {
			continue
		}
		for _, entity := range entities {
			if _, ok := col.Value(entity); ok {
				active = append(active, col)
				break
			}
		}
	}
	return active
}

func (e *Engine[T]) checkKeys(entities []T) error {
	seen := make(map[uuid.UUID]struct{}, len(entities))
	for _, entity := range entities {
		key := e.desc.Key(entity)
		if key == uuid.Nil {
			return fmt.Errorf("%w: entity without %s", ErrInvalidOperation, e.desc.KeyColumn)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate %s %s in batch", ErrInvalidOperation, e.desc.KeyColumn, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}
