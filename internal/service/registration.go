package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"userhub/api/internal/apperr"
	"userhub/api/internal/ids"
	"userhub/api/internal/mail"
	"userhub/api/internal/models"
	"userhub/api/internal/queue"
	"userhub/api/internal/repository"
	"userhub/api/internal/validator"
)

const (
	LocationUsernameTaken = "MODEL:USER:VALIDATE_UNIQUE_USERNAME:ALREADY_EXISTS"
	LocationEmailTaken    = "MODEL:USER:VALIDATE_UNIQUE_EMAIL:ALREADY_EXISTS"
	LocationEmailSend     = "INFRA:EMAIL:SEND"
)

var RegistrationKeys = validator.Keys{
	"username": validator.Required,
	"email":    validator.Required,
	"password": validator.Required,
}

type RegistrationService struct {
	users      UserStore
	activation *ActivationService
	hasher     PasswordHasher
	sender     mail.Sender
	composer   mail.ActivationComposer
	retries    MailQueue
	log        zerolog.Logger
}

func NewRegistrationService(
	users UserStore,
	activation *ActivationService,
	hasher PasswordHasher,
	sender mail.Sender,
	composer mail.ActivationComposer,
	retries MailQueue,
	log zerolog.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:      users,
		activation: activation,
		hasher:     hasher,
		sender:     sender,
		composer:   composer,
		retries:    retries,
		log:        log,
	}
}

// Register creates a pending user and mails its activation link. When only the
// mail fails, the committed user is returned together with an error matching
// ErrActivationMailFailed.
func (s *RegistrationService) Register(ctx context.Context, payload map[string]any) (models.User, error) {
	clean, err := validator.Validate(payload, RegistrationKeys)
	if err != nil {
		return models.User{}, err
	}
	username := clean["username"].(string)
	email := clean["email"].(string)
	password := clean["password"].(string)

	if err := checkBlockedUsername(username); err != nil {
		return models.User{}, err
	}
	if err := ensureUsernameFree(ctx, s.users, username, ""); err != nil {
		return models.User{}, err
	}
	if err := ensureEmailFree(ctx, s.users, email, ""); err != nil {
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("register: %w", err)
	}

	user, err := s.users.Create(ctx, models.User{
		ID:           ids.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Features:     []string{models.FeatureReadActivationToken},
	})
	if err != nil {
		return models.User{}, translateTaken(err, "CREATE_USER")
	}

	token, err := s.activation.Issue(ctx, user.ID)
	if err != nil {
		return user, err
	}

	msg := s.composer.Compose(user.Username, user.Email, token.ID, token.ExpiresAt)
	if err := s.sender.Send(ctx, msg); err != nil {
		return user, s.mailFailed(ctx, user, token, msg, err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

func (s *RegistrationService) mailFailed(ctx context.Context, user models.User, token models.ActivationToken, msg mail.Message, cause error) error {
	svcErr := apperr.Service(
		"The activation email could not be sent.",
		LocationEmailSend,
		apperr.WithCause(cause),
		apperr.WithAction("Check that the email service is available."),
		apperr.WithContext(map[string]any{"to": msg.To, "subject": msg.Subject, "user_id": user.ID}),
	)
	s.log.Error().Err(svcErr).Fields(svcErr.Context).Msg("activation email failed")

	if s.retries != nil {
		if err := s.retries.EnqueueMail(ctx, queue.MailJob{
			UserID:    user.ID,
			TokenID:   token.ID,
			ExpiresAt: token.ExpiresAt,
			Message:   msg,
		}); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("enqueue activation email retry failed")
		}
	}

	return fmt.Errorf("%w: %w", ErrActivationMailFailed, svcErr)
}

func usernameTaken() error {
	return apperr.Validation(
		`The "username" provided is already in use.`,
		LocationUsernameTaken,
		apperr.WithKey("username"),
		apperr.WithType("string.unique"),
		apperr.WithAction("Choose another username and try again."),
	)
}

func emailTaken() error {
	return apperr.Validation(
		`The "email" provided is already in use.`,
		LocationEmailTaken,
		apperr.WithKey("email"),
		apperr.WithType("string.unique"),
		apperr.WithAction("Use another email or sign in to the existing account."),
	)
}

// ensureUsernameFree fails when username belongs to someone other than selfID.
func ensureUsernameFree(ctx context.Context, users UserStore, username, selfID string) error {
	existing, err := users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	case err != nil:
		return databaseError("FIND_USER", err)
	case existing.ID != selfID:
		return usernameTaken()
	}
	return nil
}

func ensureEmailFree(ctx context.Context, users UserStore, email, selfID string) error {
	existing, err := users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	case err != nil:
		return databaseError("FIND_USER", err)
	case existing.ID != selfID:
		return emailTaken()
	}
	return nil
}

// translateTaken maps storage-level unique violations, which catch concurrent
// writers the pre-checks miss.
func translateTaken(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrUsernameTaken):
		return usernameTaken()
	case errors.Is(err, repository.ErrEmailTaken):
		return emailTaken()
	default:
		return databaseError(op, err)
	}
}
