package db

import (
	"context"
	"errors"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBackend stores one record kind in a SQL table. R must be a gorm model.
type GormBackend[R any] struct {
	db   *gorm.DB
	kind Kind[R]
}

func NewGormBackend[R any](gdb *gorm.DB, kind Kind[R]) *GormBackend[R] {
	return &GormBackend[R]{db: gdb, kind: kind}
}

func (b *GormBackend[R]) conflictColumns() []clause.Column {
	cols := make([]clause.Column, len(b.kind.KeyColumns))
	for i, name := range b.kind.KeyColumns {
		cols[i] = clause.Column{Name: name}
	}
	return cols
}

// replaceColumns lists what a conflicting Put overwrites: everything except
// the key and created_at.
func (b *GormBackend[R]) replaceColumns() ([]string, error) {
	stmt := &gorm.Statement{DB: b.db}
	if err := stmt.Parse(new(R)); err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(stmt.Schema.DBNames))
	for _, name := range stmt.Schema.DBNames {
		if name == "created_at" || slices.Contains(b.kind.KeyColumns, name) {
			continue
		}
		cols = append(cols, name)
	}
	return cols, nil
}

func (b *GormBackend[R]) Put(ctx context.Context, r *R) error {
	cols, err := b.replaceColumns()
	if err != nil {
		return err
	}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: b.conflictColumns(), DoUpdates: clause.AssignmentColumns(cols)}).
		Create(r).Error
}

func (b *GormBackend[R]) Update(ctx context.Context, key Key, r *R) error {
	// Struct Updates skip zero-valued fields, which is the partial merge.
	result := b.db.WithContext(ctx).Model(new(R)).Where(map[string]any(key)).Updates(r)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return b.db.WithContext(ctx).Create(r).Error
}

func (b *GormBackend[R]) Get(ctx context.Context, key Key) (*R, error) {
	var r R
	err := b.db.WithContext(ctx).Where(map[string]any(key)).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (b *GormBackend[R]) Query(ctx context.Context, partition Key) ([]R, error) {
	var rows []R
	err := b.db.WithContext(ctx).
		Where(map[string]any(partition)).
		Order(clause.OrderByColumn{Column: clause.Column{Name: b.kind.KeyColumns[len(b.kind.KeyColumns)-1]}}).
		Find(&rows).Error
	return rows, err
}

func (b *GormBackend[R]) Delete(ctx context.Context, key Key) error {
	return b.db.WithContext(ctx).Where(map[string]any(key)).Delete(new(R)).Error
}

func (b *GormBackend[R]) Expire(ctx context.Context, now time.Time) (int64, error) {
	result := b.db.WithContext(ctx).Where("time_to_live <= ?", now.UTC()).Delete(new(R))
	return result.RowsAffected, result.Error
}
