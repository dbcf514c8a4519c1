package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Executor runs a statement that returns (id, key) rows.
type Executor interface {
	QueryIDs(ctx context.Context, stmt Statement) (IDs, error)
}

// InsertAll inserts entities in one statement. Empty input executes nothing.
func (e *Engine[T]) InsertAll(ctx context.Context, exec Executor, entities []T) (IDs, error) {
	if len(entities) == 0 {
		return IDs{}, nil
	}
	stmt, err := e.BuildInsert(entities)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, exec, stmt, entities)
}

// UpdateAll updates entities in one statement, touching only columns that
// some entity sets.
func (e *Engine[T]) UpdateAll(ctx context.Context, exec Executor, entities []T) (IDs, error) {
	if len(entities) == 0 {
		return IDs{}, nil
	}
	stmt, ok, err := e.BuildUpdate(entities)
	if err != nil {
		return nil, err
	}
	if !ok {
		return IDs{}, nil
	}
	return e.run(ctx, exec, stmt, entities)
}

// Reconcile inserts entities without an id and updates the rest. Callers
// wanting all-or-nothing semantics across both statements pass an Executor
// bound to a transaction.
func (e *Engine[T]) Reconcile(ctx context.Context, exec Executor, entities []T) (IDs, error) {
	if err := e.checkKeys(entities); err != nil {
		return nil, err
	}
	inserts, updates := e.Partition(entities)

	ids := make(IDs, len(entities))
	inserted, err := e.InsertAll(ctx, exec, inserts)
	if err != nil {
		return nil, err
	}
	ids.Merge(inserted)

	updated, err := e.UpdateAll(ctx, exec, updates)
	if err != nil {
		return nil, err
	}
	ids.Merge(updated)
	return ids, nil
}

func (e *Engine[T]) run(ctx context.Context, exec Executor, stmt Statement, entities []T) (IDs, error) {
	returned, err := exec.QueryIDs(ctx, stmt)
	if err != nil {
		return nil, err
	}
	ids := make(IDs, len(entities))
	for _, entity := range entities {
		key := e.desc.Key(entity)
		id, ok := returned[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnmatchedKey, key)
		}
		// an update must hit the row the caller named, not just its key
		if want := e.desc.ID(entity); want != nil && *want != id {
			return nil, fmt.Errorf("%w: %s belongs to id %d, not %d", ErrUnmatchedKey, key, id, *want)
		}
		ids[key] = id
	}
	return ids, nil
}

// GormExecutor runs statements through gorm, which rewrites ? placeholders
// for the active dialect.
type GormExecutor struct {
	db *gorm.DB
}

func NewGormExecutor(db *gorm.DB) *GormExecutor {
	return &GormExecutor{db: db}
}

func (g *GormExecutor) QueryIDs(ctx context.Context, stmt Statement) (IDs, error) {
	rows, err := g.db.WithContext(ctx).Raw(stmt.SQL, stmt.Args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(IDs)
	for rows.Next() {
		var (
			id  int64
			key uuid.UUID
		)
		if err := rows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("scan batch result: %w", g.translate(err))
		}
		ids[key] = id
	}
	if err := rows.Err(); err != nil {
		return nil, g.translate(err)
	}
	return ids, nil
}

// translate applies the dialector's error translation to errors surfaced
// while iterating rows, which gorm never sees.
func (g *GormExecutor) translate(err error) error {
	if !g.db.Config.TranslateError {
		return err
	}
	if translator, ok := g.db.Dialector.(gorm.ErrorTranslator); ok {
		return translator.Translate(err)
	}
	return err
}
