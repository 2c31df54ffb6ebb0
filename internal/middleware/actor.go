package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"userhub/api/internal/apperr"
	"userhub/api/internal/authorization"
	"userhub/api/internal/models"
	"userhub/api/internal/repository"
	"userhub/api/internal/security"
)

const (
	LocationTokenInvalid    = "AUTH:TOKEN:INVALID"
	LocationCantReadSession = "MODEL:AUTHENTICATION:INJECT_AUTHENTICATED_USER:USER_CANT_READ_SESSION"

	actorKey = "actor"
	userKey  = "current_user"
)

type TokenDecoder interface {
	Decode(token string) (*security.SessionClaims, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// InjectActor attaches the anonymous actor, or the user named by a valid
// bearer token, to the request.
func InjectActor(decoder TokenDecoder, users UserFinder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(actorKey, authorization.Anonymous())
			c.Next()
			return
		}

		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			WriteError(c, log, invalidToken())
			return
		}

		claims, err := decoder.Decode(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("session token rejected")
			WriteError(c, log, invalidToken())
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.Subject)
		if errors.Is(err, repository.ErrUserNotFound) {
			WriteError(c, log, invalidToken())
			return
		}
		if err != nil {
			WriteError(c, log, apperr.Service(
				"The database is unavailable.",
				"INFRA:DATABASE:FIND_USER",
				apperr.WithCause(err),
			))
			return
		}

		if !user.HasFeature(models.FeatureReadSession) {
			WriteError(c, log, apperr.Forbidden(
				"You do not have permission to perform this action.",
				LocationCantReadSession,
				apperr.WithAction(`Check that this user has activated the account and received the "read:session" feature.`),
			))
			return
		}

		c.Set(actorKey, authorization.FromUser(user))
		c.Set(userKey, user)
		c.Next()
	}
}

// ActorFrom returns the injected actor, anonymous when none was set.
func ActorFrom(c *gin.Context) authorization.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(authorization.Actor); ok {
			return actor
		}
	}
	return authorization.Anonymous()
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func invalidToken() error {
	return apperr.Unauthorized(
		"The session token is invalid or expired.",
		LocationTokenInvalid,
		apperr.WithAction("Sign in again to obtain a new token."),
	)
}
