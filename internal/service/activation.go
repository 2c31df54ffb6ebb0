package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"userhub/api/internal/apperr"
	"userhub/api/internal/authorization"
	"userhub/api/internal/ids"
	"userhub/api/internal/models"
	"userhub/api/internal/repository"
	"userhub/api/internal/validator"
)

const (
	LocationTokenNotFound     = "MODEL:ACTIVATION:FIND_ONE_TOKEN_BY_ID:NOT_FOUND"
	LocationTokenExpired      = "MODEL:ACTIVATION:FIND_ONE_VALID_TOKEN_BY_ID:EXPIRED"
	LocationActivationFeature = "MODEL:ACTIVATION:ACTIVATE_USER_BY_USER_ID:FEATURE_NOT_FOUND"
	LocationActivationUser    = "MODEL:ACTIVATION:ACTIVATE_USER_BY_USER_ID:USER_NOT_FOUND"
)

const DefaultActivationTTL = 15 * time.Minute

var ActivationKeys = validator.Keys{"token_id": validator.Required}

// activatedFeatures replace read:activation_token on redemption.
var activatedFeatures = []string{
	models.FeatureCreateSession,
	models.FeatureReadSession,
	models.FeatureUpdateUser,
}

type ActivationService struct {
	tokens TokenStore
	users  UserStore
	tx     Transactor
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewActivationService(tokens TokenStore, users UserStore, tx Transactor, ttl time.Duration, now func() time.Time, log zerolog.Logger) *ActivationService {
	if ttl <= 0 {
		ttl = DefaultActivationTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ActivationService{tokens: tokens, users: users, tx: tx, ttl: ttl, now: now, log: log}
}

// Issue creates a pending token for userID.
func (s *ActivationService) Issue(ctx context.Context, userID string) (models.ActivationToken, error) {
	token, err := s.tokens.Create(ctx, ids.NewSecret(), userID, s.now().Add(s.ttl))
	if err != nil {
		return models.ActivationToken{}, databaseError("CREATE_ACTIVATION_TOKEN", err)
	}
	return token, nil
}

// Redeem consumes tokenID and activates its owner. Redeeming an already used
// token returns it unchanged.
func (s *ActivationService) Redeem(ctx context.Context, tokenID string) (models.ActivationToken, error) {
	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return models.ActivationToken{}, apperr.NotFound(
				"The activation token was not found.",
				LocationTokenNotFound,
				apperr.WithKey("token_id"),
				apperr.WithAction("Check that the activation link is correct."),
			)
		}
		return models.ActivationToken{}, databaseError("FIND_ACTIVATION_TOKEN", err)
	}
	if token.Used {
		return token, nil
	}

	token, err = s.tokens.FindValidByID(ctx, tokenID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return models.ActivationToken{}, apperr.Validation(
				"The activation token has expired.",
				LocationTokenExpired,
				apperr.WithKey("token_id"),
				apperr.WithType("token.expired"),
				apperr.WithAction("Sign up again to receive a new activation link."),
			)
		}
		return models.ActivationToken{}, databaseError("FIND_ACTIVATION_TOKEN", err)
	}

	used, err := s.activateUser(ctx, token)
	if err != nil {
		return models.ActivationToken{}, err
	}

	s.log.Info().
		Str("token_id", used.ID).
		Str("user_id", used.UserID).
		Msg("user activated")
	return used, nil
}

// activateUser swaps the owner's features and marks token used in one
// transaction.
func (s *ActivationService) activateUser(ctx context.Context, token models.ActivationToken) (models.ActivationToken, error) {
	user, err := s.users.FindByID(ctx, token.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.ActivationToken{}, userMissing()
	}
	if err != nil {
		return models.ActivationToken{}, databaseError("FIND_USER", err)
	}
	if !authorization.Can(authorization.FromUser(user), models.FeatureReadActivationToken) {
		return models.ActivationToken{}, activationForbidden()
	}

	var used models.ActivationToken
	err = s.tx.WithinTx(ctx, func(users UserStore, tokens TokenStore) error {
		_, err := users.ReplaceFeatures(ctx, user.ID, []string{models.FeatureReadActivationToken}, activatedFeatures)
		switch {
		case errors.Is(err, repository.ErrFeaturesChanged):
			// another redemption won the race
			return activationForbidden()
		case errors.Is(err, repository.ErrUserNotFound):
			return userMissing()
		case err != nil:
			return databaseError("REPLACE_FEATURES", err)
		}

		used, err = tokens.MarkUsed(ctx, token.ID)
		if err != nil {
			return databaseError("MARK_ACTIVATION_TOKEN_USED", err)
		}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return models.ActivationToken{}, err
		}
		return models.ActivationToken{}, databaseError("ACTIVATE_USER", err)
	}
	return used, nil
}

func userMissing() error {
	return apperr.NotFound(
		"The user was not found.",
		LocationActivationUser,
		apperr.WithAction("Check that the user was registered successfully."),
	)
}

func activationForbidden() error {
	return apperr.Forbidden(
		"You can no longer read activation tokens.",
		LocationActivationFeature,
		apperr.WithAction("Check whether you are already signed in or trying to activate an account that is already active."),
	)
}
