package services

import (
	"context"
	"estate-chat/auth"
	"estate-chat/domain"
	"estate-chat/errors"
	"estate-chat/mocks"
	"estate-chat/repositories"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAuthService(t *testing.T) (IAuthService, *mocks.MockIUserRepository, *mocks.MockIProfileRepository, *auth.Tokens) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	profiles := mocks.NewMockIProfileRepository(ctrl)
	tokens := auth.NewTokens("service-test-secret-service-test-secret", 24*time.Hour)
	return NewAuthService(logs.GetLoggerFromLevel(slog.LevelDebug), users, profiles, tokens), users, profiles, tokens
}

func TestAuthService_Register(t *testing.T) {
	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		svc, users, profiles, tokens := newAuthService(t)
		name := "Ana"

		// CreateUser receives a hashed password, never the plain one
		users.EXPECT().
			CreateUser(gomock.Any(), "test@example.com", gomock.Not("ComplexPass123!")).
			Return("user-uuid", nil).
			Times(1)
		profiles.EXPECT().
			UpsertProfile(gomock.Any(), domain.Profile{ID: "user-uuid", Name: &name}).
			Return(nil)

		session, err := svc.Register(context.Background(),
			auth.RegisterRequest{Email: " Test@Example.com ", Password: "ComplexPass123!", Name: "Ana"})

		req.NoError(err)
		req.Equal("user-uuid", session.UserID)
		claims, err := tokens.Validate(session.Token)
		req.NoError(err)
		req.Equal("user-uuid", claims.UserID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		svc, users, _, _ := newAuthService(t)
		users.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		session, err := svc.Register(context.Background(),
			auth.RegisterRequest{Email: "test@example.com", Password: "simplepassword"})

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(session.Token)
	})

	t.Run("should fail when email is invalid", func(t *testing.T) {
		req := require.New(t)
		svc, users, _, _ := newAuthService(t)
		users.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register(context.Background(),
			auth.RegisterRequest{Email: "nope", Password: "ComplexPass123!"})

		req.ErrorIs(err, errors.ErrInvalidRequest)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		svc, users, _, _ := newAuthService(t)
		users.EXPECT().
			CreateUser(gomock.Any(), "duplicate@example.com", gomock.Any()).
			Return("", errors.ErrUserAlreadyExists)

		_, err := svc.Register(context.Background(),
			auth.RegisterRequest{Email: "duplicate@example.com", Password: "ComplexPass123!"})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	hash, err := auth.HashPassword("ComplexPass123!")
	require.NoError(t, err)
	user := repositories.User{ID: "user-1", Email: "user@example.com", PasswordHash: hash, Roles: []string{"user"}}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		svc, users, _, _ := newAuthService(t)
		users.EXPECT().GetUserByEmail(gomock.Any(), "user@example.com").Return(user, nil)

		session, err := svc.Login(context.Background(), auth.LoginRequest{Email: "user@example.com", Password: "ComplexPass123!"})

		req.NoError(err)
		req.Equal("user-1", session.UserID)
		req.NotEmpty(session.Token)
	})

	t.Run("should fail with wrong password", func(t *testing.T) {
		req := require.New(t)
		svc, users, _, _ := newAuthService(t)
		users.EXPECT().GetUserByEmail(gomock.Any(), "user@example.com").Return(user, nil)

		_, err := svc.Login(context.Background(), auth.LoginRequest{Email: "user@example.com", Password: "WrongPass123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should not reveal unknown users", func(t *testing.T) {
		req := require.New(t)
		svc, users, _, _ := newAuthService(t)
		users.EXPECT().GetUserByEmail(gomock.Any(), "ghost@example.com").Return(repositories.User{}, errors.ErrNotFound)

		_, err := svc.Login(context.Background(), auth.LoginRequest{Email: "ghost@example.com", Password: "ComplexPass123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
