package repository

import (
	"context"

	"github.com/smallbiznis/kilekitabu/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm store for tables with a single primary key.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Upsert(ctx context.Context, resource *T, updateColumns ...string) error
}
