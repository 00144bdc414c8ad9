package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"legalestate/auth"
	"legalestate/config"
	"legalestate/handlers"
	"legalestate/middleware"
	"legalestate/monitoring"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Lawyer     *handlers.LawyerHandler
	Client     *handlers.ClientHandler
	Session    *handlers.SessionHandler
	Invitation *handlers.InvitationHandler
	Health     *handlers.HealthHandler
}

func NewRouter(cfg config.Config, h Handlers, authMW *middleware.Auth, limiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	handlers.RegisterValidation()
	monitoring.Init()

	router := gin.New()
	router.Use(
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.SentryMiddleware(),
		middleware.ErrorHandler(logger),
		middleware.PrometheusMetrics(),
		middleware.SecurityHeaders(cfg.BodyLimitBytes),
		middleware.CORS(cfg.FrontendURL),
	)

	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	api := router.Group("/api")
	api.GET("/health", h.Health.Check)

	api.Use(limiter.Handler())

	api.POST("/lawyer/register", h.Lawyer.Register)
	api.POST("/lawyer/login", h.Lawyer.Login)
	api.POST("/client/login", h.Client.Login)
	api.POST("/invitations/:code/opened", h.Invitation.Opened)
	api.POST("/invitations/:code/downloaded", h.Invitation.Downloaded)

	authed := api.Group("")
	authed.Use(authMW.ValidateJWT)
	{
		authed.GET("/verify-token", h.Session.VerifyToken)
		authed.POST("/logout", h.Session.Logout)
	}

	lawyer := authed.Group("/lawyer")
	lawyer.Use(middleware.RequireRole(auth.RoleLawyer))
	{
		lawyer.POST("/invite-client", h.Lawyer.InviteClient)
		lawyer.GET("/dashboard", h.Lawyer.Dashboard)
		lawyer.GET("/clients/search", h.Lawyer.SearchClients)
		lawyer.POST("/clients/:id/resend-invitation", h.Lawyer.ResendInvitation)
	}

	client := authed.Group("/client")
	client.Use(middleware.RequireRole(auth.RoleClient))
	{
		client.GET("/estate-data", h.Client.GetEstateData)
		client.POST("/estate-data", h.Client.SaveEstateData)
	}

	return router
}
