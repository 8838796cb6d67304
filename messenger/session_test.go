package messenger

import (
	"context"
	"errors"
	"estate-chat/mocks"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSessionResolver_Resolve(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	t.Run("returns the current user", func(t *testing.T) {
		req := require.New(t)
		backend := mocks.NewMockBackend(gomock.NewController(t))
		backend.EXPECT().Session(gomock.Any()).Return("u1", nil)

		userID, err := NewSessionResolver(backend, log).Resolve(context.Background(), "u2")
		req.NoError(err)
		req.Equal("u1", userID)
	})

	t.Run("redirects to login with the counterpart preserved", func(t *testing.T) {
		req := require.New(t)
		backend := mocks.NewMockBackend(gomock.NewController(t))
		backend.EXPECT().Session(gomock.Any()).Return("", nil)

		_, err := NewSessionResolver(backend, log).Resolve(context.Background(), "u 2")
		var loginErr *LoginRequiredError
		req.ErrorAs(err, &loginErr)
		req.Equal("/login?redirect_url=%2Fmessages%3Fto%3Du%2B2", loginErr.RedirectURL)
	})

	t.Run("a failed session read is unauthenticated and not retried", func(t *testing.T) {
		req := require.New(t)
		backend := mocks.NewMockBackend(gomock.NewController(t))
		backend.EXPECT().Session(gomock.Any()).Return("", errors.New("network down")).Times(1)

		_, err := NewSessionResolver(backend, log).Resolve(context.Background(), "")
		var loginErr *LoginRequiredError
		req.ErrorAs(err, &loginErr)
		req.Equal("/login?redirect_url=%2Fmessages", loginErr.RedirectURL)
	})
}
