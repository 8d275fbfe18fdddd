package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/kilekitabu/pkg/db/option"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type deviceToken struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	Token     string    `gorm:"column:token;not null"`
	Active    bool      `gorm:"column:active;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (deviceToken) TableName() string { return "device_tokens" }

func setupStore(t *testing.T) Repository[deviceToken] {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE device_tokens (
		user_id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		active BOOLEAN NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
	return ProvideStore[deviceToken](db)
}

func TestStoreUpsertAndFind(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, &deviceToken{UserID: "u1", Token: "a", Active: true, UpdatedAt: now}, "token", "updated_at"))
	require.NoError(t, store.Upsert(ctx, &deviceToken{UserID: "u1", Token: "b", Active: true, UpdatedAt: now.Add(time.Hour)}, "token", "updated_at"))
	require.NoError(t, store.Create(ctx, &deviceToken{UserID: "u2", Token: "c", Active: false, UpdatedAt: now}))

	got, err := store.FindOne(ctx, &deviceToken{UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "b", got.Token)

	missing, err := store.FindOne(ctx, &deviceToken{UserID: "nobody"})
	require.NoError(t, err)
	require.Nil(t, missing)

	inactive, err := store.Find(ctx, nil, option.Where("active = ?", false))
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	require.Equal(t, "u2", inactive[0].UserID)

	ordered, err := store.Find(ctx, nil, option.OrderBy("user_id", true))
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	require.Equal(t, "u2", ordered[0].UserID)
}
