package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"userhub/api/internal/models"
)

var ErrTokenNotFound = errors.New("activation token not found")

const tokenColumns = `id, user_id, used, expires_at, created_at, updated_at`

type ActivationRepository struct {
	db DBTX
}

func NewActivationRepository(db DBTX) *ActivationRepository {
	return &ActivationRepository{db: db}
}

func (r *ActivationRepository) Create(ctx context.Context, id, userID string, expiresAt time.Time) (models.ActivationToken, error) {
	const query = `
		INSERT INTO activate_account_tokens (
			id, user_id, used, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, FALSE, $3, NOW(), NOW()
		)
		RETURNING ` + tokenColumns

	token, err := scanToken(r.db.QueryRow(ctx, query, id, userID, expiresAt))
	if err != nil {
		return models.ActivationToken{}, fmt.Errorf("create activation token: %w", err)
	}
	return token, nil
}

func (r *ActivationRepository) FindByID(ctx context.Context, id string) (models.ActivationToken, error) {
	const query = `SELECT ` + tokenColumns + ` FROM activate_account_tokens WHERE id = $1`

	token, err := scanToken(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ActivationToken{}, ErrTokenNotFound
		}
		return models.ActivationToken{}, fmt.Errorf("find activation token: %w", err)
	}
	return token, nil
}

// FindValidByID returns the token only while it is unused and unexpired at now.
func (r *ActivationRepository) FindValidByID(ctx context.Context, id string, now time.Time) (models.ActivationToken, error) {
	const query = `
		SELECT ` + tokenColumns + `
		FROM activate_account_tokens
		WHERE id = $1 AND used = FALSE AND expires_at > $2`

	token, err := scanToken(r.db.QueryRow(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ActivationToken{}, ErrTokenNotFound
		}
		return models.ActivationToken{}, fmt.Errorf("find valid activation token: %w", err)
	}
	return token, nil
}

// MarkUsed sets used to true. Tokens are never deleted; repeating the call is harmless.
func (r *ActivationRepository) MarkUsed(ctx context.Context, id string) (models.ActivationToken, error) {
	const query = `
		UPDATE activate_account_tokens
		SET used = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + tokenColumns

	token, err := scanToken(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ActivationToken{}, ErrTokenNotFound
		}
		return models.ActivationToken{}, fmt.Errorf("mark activation token used: %w", err)
	}
	return token, nil
}

func scanToken(row pgx.Row) (models.ActivationToken, error) {
	var token models.ActivationToken
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Used,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	return token, err
}
