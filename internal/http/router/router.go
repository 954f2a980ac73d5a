package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abdoElHodaky/smartfixapi/internal/config"
	"github.com/abdoElHodaky/smartfixapi/internal/http/handlers"
	"github.com/abdoElHodaky/smartfixapi/internal/http/middleware"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/service"
)

// SetupRouter собирает все маршруты приложения.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	requestHandler *handlers.RequestHandler,
	proposalHandler *handlers.ProposalHandler,
	providerHandler *handlers.ProviderHandler,
	conversationHandler *handlers.ConversationHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/providers/:id", middleware.UUIDValidator("id"), providerHandler.GetProvider)
	api.GET("/providers/:id/reviews", middleware.UUIDValidator("id"), providerHandler.ListReviews)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/requests", requestHandler.CreateRequest)
		protected.GET("/requests/my", requestHandler.ListMyRequests)
		protected.GET("/requests/assigned", requestHandler.ListAssignedRequests)
		protected.GET("/requests/:id", middleware.UUIDValidator("id"), requestHandler.GetRequest)
		protected.PATCH("/requests/:id", middleware.UUIDValidator("id"), requestHandler.UpdateRequest)
		protected.POST("/requests/:id/cancel", middleware.UUIDValidator("id"), requestHandler.CancelRequest)
		protected.POST("/requests/:id/start", middleware.UUIDValidator("id"), requestHandler.StartService)
		protected.POST("/requests/:id/complete", middleware.UUIDValidator("id"), requestHandler.CompleteService)
		protected.POST("/requests/:id/approve", middleware.UUIDValidator("id"), requestHandler.ApproveCompletion)
		protected.GET("/requests/:id/matches", middleware.UUIDValidator("id"), requestHandler.MatchProviders)
		protected.POST("/requests/:id/photos", middleware.UUIDValidator("id"), requestHandler.UploadPhoto)
		protected.GET("/requests/:id/conversation", middleware.UUIDValidator("id"), conversationHandler.GetChannelForRequest)

		protected.POST("/requests/:id/proposals", middleware.UUIDValidator("id"), proposalHandler.SubmitProposal)
		protected.GET("/requests/:id/proposals", middleware.UUIDValidator("id"), proposalHandler.ListProposals)
		protected.POST("/requests/:id/proposals/:proposalId/accept",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("proposalId"), proposalHandler.AcceptProposal)
		protected.POST("/proposals/:id/withdraw", middleware.UUIDValidator("id"), proposalHandler.WithdrawProposal)

		providerOnly := middleware.RequireRole(models.RoleProvider, models.RoleAdmin)
		protected.POST("/providers", providerOnly, providerHandler.CreateProfile)
		protected.PUT("/providers/me", providerOnly, providerHandler.UpdateProfile)
		protected.GET("/providers/me/recommendations", providerOnly, providerHandler.Recommendations)
		protected.POST("/providers/:id/reviews", middleware.UUIDValidator("id"), providerHandler.CreateReview)

		protected.GET("/conversations", conversationHandler.ListChannels)

		protected.GET("/notifications", notificationHandler.List)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	return r
}
