package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	"github.com/smallbiznis/kilekitabu/internal/notification/domain"
	"github.com/smallbiznis/kilekitabu/internal/notification/mocks"
	"github.com/smallbiznis/kilekitabu/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, sender domain.Sender) (domain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:     testutil.OpenDB(t),
		Log:    zap.NewNop(),
		Sender: sender,
		Clock:  clk,
	})
	return svc, clk
}

func TestRegisterTokenReplacesPreviousToken(t *testing.T) {
	ctx := context.Background()
	svc, clk := newTestService(t, nil)

	require.NoError(t, svc.RegisterToken(ctx, "user-1", "token-a"))
	clk.Advance(time.Hour)
	require.NoError(t, svc.RegisterToken(ctx, " user-1 ", " token-b "))

	token, err := svc.Token(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "token-b", token)

	tokens, err := svc.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.True(t, tokens[0].UpdatedAt.Equal(clk.Now()))
}

func TestRegisterTokenValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	require.ErrorIs(t, svc.RegisterToken(ctx, "", "token"), domain.ErrInvalidUser)
	require.ErrorIs(t, svc.RegisterToken(ctx, "user-1", "  "), domain.ErrInvalidToken)
}

func TestTokenMissingUser(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Token(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestListTokensOrderedByUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	require.NoError(t, svc.RegisterToken(ctx, "user-b", "tb"))
	require.NoError(t, svc.RegisterToken(ctx, "user-a", "ta"))

	tokens, err := svc.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, "user-a", tokens[0].UserID)
	require.Equal(t, "user-b", tokens[1].UserID)
}

func TestSendToUserDeliversThroughSender(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	svc, _ := newTestService(t, sender)

	require.NoError(t, svc.RegisterToken(ctx, "user-1", "token-1"))
	data := map[string]string{"type": "test"}
	sender.EXPECT().
		Send(gomock.Any(), "token-1", "Hello", "World", data).
		Return(true)

	delivered, err := svc.SendToUser(ctx, "user-1", "Hello", "World", data)
	require.NoError(t, err)
	require.True(t, delivered)
}

func TestSendToUserReportsUndelivered(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	svc, _ := newTestService(t, sender)

	require.NoError(t, svc.RegisterToken(ctx, "user-1", "token-1"))
	sender.EXPECT().Send(gomock.Any(), "token-1", "Hello", "", gomock.Any()).Return(false)

	delivered, err := svc.SendToUser(ctx, "user-1", "Hello", "", nil)
	require.NoError(t, err)
	require.False(t, delivered)
}

func TestSendToUserWithoutTokenSkipsSender(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	svc, _ := newTestService(t, sender)

	_, err := svc.SendToUser(context.Background(), "user-1", "Hello", "World", nil)
	require.ErrorIs(t, err, domain.ErrTokenNotFound)

	_, err = svc.SendToUser(context.Background(), "user-1", " ", "World", nil)
	require.ErrorIs(t, err, domain.ErrInvalidTitle)
}
