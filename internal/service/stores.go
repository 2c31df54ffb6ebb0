package service

import (
	"context"
	"errors"
	"time"

	"userhub/api/internal/apperr"
	"userhub/api/internal/models"
	"userhub/api/internal/queue"
)

// UserStore is satisfied by repository.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	ReplaceFeatures(ctx context.Context, id string, remove, add []string) (models.User, error)
	UpdateProfile(ctx context.Context, id, username, email, passwordHash string) (models.User, error)
}

// TokenStore is satisfied by repository.ActivationRepository.
type TokenStore interface {
	Create(ctx context.Context, id, userID string, expiresAt time.Time) (models.ActivationToken, error)
	FindByID(ctx context.Context, id string) (models.ActivationToken, error)
	FindValidByID(ctx context.Context, id string, now time.Time) (models.ActivationToken, error)
	MarkUsed(ctx context.Context, id string) (models.ActivationToken, error)
}

// Transactor runs fn with stores bound to a single transaction. An error from
// fn rolls back every write made through them.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(users UserStore, tokens TokenStore) error) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) (bool, error)
}

type MailQueue interface {
	EnqueueMail(ctx context.Context, job queue.MailJob) error
}

var ErrActivationMailFailed = errors.New("activation mail not delivered")

func databaseError(op string, err error) *apperr.Error {
	return apperr.Service(
		"The database is unavailable.",
		"INFRA:DATABASE:"+op,
		apperr.WithCause(err),
		apperr.WithAction("Try again in a few moments."),
	)
}
