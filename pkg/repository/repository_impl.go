package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/kilekitabu/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	stmt := r.buildQuery(ctx, query, opts...)
	err := stmt.Find(&result).Error
	return result, err
}

func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var result T
	err := r.buildQuery(ctx, query, opts...).First(&result).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

// Upsert inserts the resource or, on a primary key conflict, overwrites the
// listed columns.
func (r *store[T]) Upsert(ctx context.Context, resource *T, updateColumns ...string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: r.primaryKey()}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(resource).Error
}

func (r *store[T]) primaryKey() string {
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(new(T)); err == nil && stmt.Schema != nil && stmt.Schema.PrioritizedPrimaryField != nil {
		return stmt.Schema.PrioritizedPrimaryField.DBName
	}
	return "id"
}

// buildQuery matches the non-zero fields of filter, then applies opts.
func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	db := r.db.WithContext(ctx)
	if filter != nil {
		db = db.Where(filter)
	}
	for _, opt := range opts {
		db = opt.Apply(db)
	}
	return db
}
