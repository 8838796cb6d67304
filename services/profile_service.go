package services

import (
	"context"
	"estate-chat/domain"
	"estate-chat/errors"
	"estate-chat/repositories"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// MaxProfileBatch caps the ids of one lookup, callers split larger sets.
const MaxProfileBatch = 100

var validate = validator.New()

type IProfileService interface {
	Profiles(ctx context.Context, ids []string) ([]domain.Profile, error)
	UpdateMine(ctx context.Context, userID string, req ProfileRequest) (domain.Profile, error)
}

type ProfileRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=80"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

type ProfileService struct {
	profiles repositories.IProfileRepository
}

func NewProfileService(profiles repositories.IProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Profiles returns the public profiles of the given ids, unknown ids are omitted.
func (s *ProfileService) Profiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxProfileBatch {
		return nil, fmt.Errorf("%w: at most %d ids", errors.ErrInvalidRequest, MaxProfileBatch)
	}
	return s.profiles.GetProfiles(ctx, ids)
}

// UpdateMine replaces the display data of the caller, blank values are stored as null.
func (s *ProfileService) UpdateMine(ctx context.Context, userID string, req ProfileRequest) (domain.Profile, error) {
	req.Name = blankToNil(req.Name)
	req.AvatarURL = blankToNil(req.AvatarURL)
	if err := validate.Struct(req); err != nil {
		return domain.Profile{}, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	profile := domain.Profile{ID: userID, Name: req.Name, AvatarURL: req.AvatarURL}
	if err := s.profiles.UpsertProfile(ctx, profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
