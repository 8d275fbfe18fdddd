// Package option holds composable gorm query options for pkg/repository.
package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption mutates a query before it runs.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// Where adds a raw condition. Use it for zero-value filters that a struct
// query would drop, such as is_complete = false.
func Where(query string, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

func OrderBy(column string, desc bool) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		direction := "ASC"
		if desc {
			direction = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", column, direction))
	})
}
