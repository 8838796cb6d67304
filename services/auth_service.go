package services

import (
	"context"
	"estate-chat/auth"
	"estate-chat/domain"
	"estate-chat/errors"
	"estate-chat/repositories"
	"fmt"
	"log/slog"
	"strings"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (Session, error)
}

// Session is returned to the client after a successful authentication.
type Session struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type AuthService struct {
	log               *slog.Logger
	userRepository    repositories.IUserRepository
	profileRepository repositories.IProfileRepository
	tokens            *auth.Tokens
}

func NewAuthService(log *slog.Logger, users repositories.IUserRepository,
	profiles repositories.IProfileRepository, tokens *auth.Tokens) IAuthService {
	return &AuthService{log: log, userRepository: users, profileRepository: profiles, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	// Business rules are checked before any expensive cryptographic operation
	if err := auth.ValidateRegister(req); err != nil {
		if errors.Is(err, errors.ErrInvalidPassword) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}

	// The repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(ctx, req.Email, hashedPassword)
	if err != nil {
		return Session{}, err
	}

	profile := domain.Profile{ID: userID}
	if req.Name != "" {
		profile.Name = &req.Name
	}
	if err := s.profileRepository.UpsertProfile(ctx, profile); err != nil {
		s.log.Warn("Profile creation failed", "user", userID, "error", err)
	}

	token, err := s.tokens.Generate(userID, []string{"user"})
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	s.log.Info("User registered", "user", userID)
	return Session{Token: token, UserID: userID}, nil
}

func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (Session, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := auth.ValidateLogin(req); err != nil {
		return Session{}, errors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByEmail(ctx, req.Email)
	if err != nil {
		// Generic error to prevent user enumeration
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{Token: token, UserID: user.ID}, nil
}
