package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"userhub/api/internal/apperr"
	"userhub/api/internal/repository"
	"userhub/api/internal/validator"
)

const (
	LocationDataMismatch     = "AUTH:DATA_EXIST:DATA_MISMATCH"
	LocationPasswordMismatch = "AUTH:PASSWORD:PASSWORD_MISMATCH"
)

var CredentialKeys = validator.Keys{
	"email":    validator.Required,
	"password": validator.Required,
}

type TokenSigner interface {
	Sign(userID, email, username string) (string, error)
}

type AuthenticationService struct {
	users  UserStore
	hasher PasswordHasher
	signer TokenSigner
	log    zerolog.Logger
}

func NewAuthenticationService(users UserStore, hasher PasswordHasher, signer TokenSigner, log zerolog.Logger) *AuthenticationService {
	return &AuthenticationService{users: users, hasher: hasher, signer: signer, log: log}
}

// Authenticate returns a signed session token. Unknown email and wrong
// password fail with the same public message.
func (s *AuthenticationService) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", mismatch(LocationDataMismatch)
	}
	if err != nil {
		return "", databaseError("FIND_USER", err)
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return "", mismatch(LocationPasswordMismatch)
	}
	if !ok {
		return "", mismatch(LocationPasswordMismatch)
	}

	token, err := s.signer.Sign(user.ID, user.Email, user.Username)
	if err != nil {
		return "", err
	}
	return token, nil
}

func mismatch(location string) error {
	return apperr.Unauthorized(
		"Data does not match.",
		location,
		apperr.WithAction("Check that the submitted data is correct."),
	)
}
