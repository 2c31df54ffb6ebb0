package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"userhub/api/internal/apperr"
	"userhub/api/internal/models"
	"userhub/api/internal/repository"
	"userhub/api/internal/validator"
)

const LocationProfileUser = "MODEL:USER:FIND_ONE_BY_ID:NOT_FOUND"

var ProfileKeys = validator.Keys{
	"username": validator.Optional,
	"email":    validator.Optional,
	"password": validator.Optional,
}

type ProfileService struct {
	users  UserStore
	hasher PasswordHasher
	log    zerolog.Logger
}

func NewProfileService(users UserStore, hasher PasswordHasher, log zerolog.Logger) *ProfileService {
	return &ProfileService{users: users, hasher: hasher, log: log}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, profileMissing()
	}
	if err != nil {
		return models.User{}, databaseError("FIND_USER", err)
	}
	return user, nil
}

// Update applies the provided subset of username, email and password.
func (s *ProfileService) Update(ctx context.Context, userID string, payload map[string]any) (models.User, error) {
	clean, err := validator.Validate(payload, ProfileKeys)
	if err != nil {
		return models.User{}, err
	}
	username, _ := clean["username"].(string)
	email, _ := clean["email"].(string)
	password, _ := clean["password"].(string)

	if username != "" {
		if err := checkBlockedUsername(username); err != nil {
			return models.User{}, err
		}
		if err := ensureUsernameFree(ctx, s.users, username, userID); err != nil {
			return models.User{}, err
		}
	}
	if email != "" {
		if err := ensureEmailFree(ctx, s.users, email, userID); err != nil {
			return models.User{}, err
		}
	}

	var hash string
	if password != "" {
		if hash, err = s.hasher.Hash(password); err != nil {
			return models.User{}, fmt.Errorf("update profile: %w", err)
		}
	}

	user, err := s.users.UpdateProfile(ctx, userID, username, email, hash)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, profileMissing()
	}
	if err != nil {
		return models.User{}, translateTaken(err, "UPDATE_USER")
	}

	s.log.Info().Str("user_id", user.ID).Msg("profile updated")
	return user, nil
}

func profileMissing() error {
	return apperr.NotFound(
		"The user was not found.",
		LocationProfileUser,
		apperr.WithAction("Check that the user still exists."),
	)
}
