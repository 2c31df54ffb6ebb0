package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"userhub/api/internal/config"
	"userhub/api/internal/middleware"
	"userhub/api/internal/models"
)

type Registrar interface {
	Register(ctx context.Context, payload map[string]any) (models.User, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

type Activator interface {
	Redeem(ctx context.Context, tokenID string) (models.ActivationToken, error)
}

type Profiles interface {
	Get(ctx context.Context, userID string) (models.User, error)
	Update(ctx context.Context, userID string, payload map[string]any) (models.User, error)
}

// Dependencies are the collaborators the routes need. The process entry
// point builds them; tests pass fakes.
type Dependencies struct {
	Registration   Registrar
	Authentication Authenticator
	Activation     Activator
	Profiles       Profiles
	Sessions       middleware.TokenDecoder
	Users          middleware.UserFinder
	Checks         map[string]PingFunc
}

type HandlerSet struct {
	log  zerolog.Logger
	cfg  *config.AppConfig
	deps Dependencies
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Dependencies) HandlerSet {
	return HandlerSet{
		log:  log,
		cfg:  cfg,
		deps: deps,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.Use(middleware.InjectActor(h.deps.Sessions, h.deps.Users, h.log))
	{
		v1.POST("/users", h.require(models.FeatureCreateUser), h.CreateUser)
		v1.POST("/users/auth", h.require(models.FeatureCreateSession), h.CreateSession)
		v1.PATCH("/activation", h.require(models.FeatureReadActivationToken), h.Activate)

		v1.GET("/user", h.require(models.FeatureReadSession), h.GetProfile)
		v1.PATCH("/user", h.require(models.FeatureUpdateUser), h.UpdateProfile)
	}
}

func (h HandlerSet) require(capability string) gin.HandlerFunc {
	return middleware.RequireFeature(capability, h.log)
}

func (h HandlerSet) fail(c *gin.Context, err error) {
	middleware.WriteError(c, h.log, err)
}
