package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"userhub/api/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrEmailTaken      = errors.New("email already taken")
	ErrFeaturesChanged = errors.New("user features changed concurrently")
)

const (
	constraintUsername = "users_username_key"
	constraintEmail    = "users_email_key"
)

const userColumns = `id, username, email, password_hash, features, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user. The unique indexes on username and email are the
// authoritative uniqueness check; violations map to ErrUsernameTaken / ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (
			id, username, email, password_hash, features, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
		RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Features,
	)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, translateUniqueViolation(err, "create user")
	}
	return created, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.findOne(ctx, "find user by username", query, username)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, "find user by email", query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, "find user by id", query, id)
}

// ReplaceFeatures removes and adds features in one statement. It only applies
// while the user still holds every feature in remove; otherwise it returns
// ErrFeaturesChanged (or ErrUserNotFound when the user is gone).
func (r *UserRepository) ReplaceFeatures(ctx context.Context, id string, remove, add []string) (models.User, error) {
	const query = `
		UPDATE users
		SET features = ARRAY(
				SELECT DISTINCT f FROM unnest(features || $3::text[]) AS f
				WHERE f <> ALL($2::text[])
				ORDER BY f
			),
			updated_at = NOW()
		WHERE id = $1 AND features @> $2::text[]
		RETURNING ` + userColumns

	if remove == nil {
		remove = []string{}
	}
	if add == nil {
		add = []string{}
	}

	user, err := scanUser(r.db.QueryRow(ctx, query, id, remove, add))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, fmt.Errorf("replace features: %w", err)
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return models.User{}, err
	}
	return models.User{}, ErrFeaturesChanged
}

// UpdateProfile sets username, email and password hash. Empty values keep the current column.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, username, email, passwordHash string) (models.User, error) {
	const query = `
		UPDATE users
		SET username = COALESCE(NULLIF($2, ''), username),
			email = COALESCE(NULLIF($3, ''), email),
			password_hash = COALESCE(NULLIF($4, ''), password_hash),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, username, strings.ToLower(email), passwordHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, translateUniqueViolation(err, "update user")
	}
	return user, nil
}

func (r *UserRepository) findOne(ctx context.Context, op, query string, arg any) (models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Features,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func translateUniqueViolation(err error, op string) error {
	if constraint, ok := constraintViolated(err); ok {
		switch constraint {
		case constraintUsername:
			return ErrUsernameTaken
		case constraintEmail:
			return ErrEmailTaken
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
