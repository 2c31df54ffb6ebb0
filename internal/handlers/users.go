package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"userhub/api/internal/authorization"
	"userhub/api/internal/middleware"
	"userhub/api/internal/models"
	"userhub/api/internal/service"
	"userhub/api/internal/validator"
)

// payload validates the request body against keys and keeps the fields the
// actor may set under capability.
func payload(c *gin.Context, keys validator.Keys, capability string) (map[string]any, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	clean, err := validator.ValidateJSON(raw, keys)
	if err != nil {
		return nil, err
	}
	return authorization.FilterInput(middleware.ActorFrom(c), capability, clean), nil
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	input, err := payload(c, service.RegistrationKeys, models.FeatureCreateUser)
	if err != nil {
		h.fail(c, err)
		return
	}

	user, err := h.deps.Registration.Register(c.Request.Context(), input)
	if err != nil {
		if !errors.Is(err, service.ErrActivationMailFailed) {
			h.fail(c, err)
			return
		}
		h.log.Warn().Err(err).Str("user_id", user.ID).Msg("user created without activation email")
	}

	c.JSON(http.StatusCreated, gin.H{
		"user": authorization.FilterOutput(authorization.FromUser(user), models.FeatureReadUser, user),
	})
}

func (h HandlerSet) CreateSession(c *gin.Context) {
	input, err := payload(c, service.CredentialKeys, models.FeatureCreateSession)
	if err != nil {
		h.fail(c, err)
		return
	}

	email, _ := input["email"].(string)
	password, _ := input["password"].(string)
	token, err := h.deps.Authentication.Authenticate(c.Request.Context(), email, password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (h HandlerSet) Activate(c *gin.Context) {
	input, err := payload(c, service.ActivationKeys, models.FeatureReadActivationToken)
	if err != nil {
		h.fail(c, err)
		return
	}

	tokenID, _ := input["token_id"].(string)
	token, err := h.deps.Activation.Redeem(c.Request.Context(), tokenID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, authorization.FilterOutput(middleware.ActorFrom(c), models.FeatureReadActivationToken, token))
}

func (h HandlerSet) GetProfile(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	user, err := h.deps.Profiles.Get(c.Request.Context(), actor.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": authorization.FilterOutput(actor, models.FeatureReadUserSelf, user)})
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	input, err := payload(c, service.ProfileKeys, models.FeatureUpdateUser)
	if err != nil {
		h.fail(c, err)
		return
	}

	actor := middleware.ActorFrom(c)
	user, err := h.deps.Profiles.Update(c.Request.Context(), actor.ID, input)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": authorization.FilterOutput(actor, models.FeatureReadUserSelf, user)})
}
