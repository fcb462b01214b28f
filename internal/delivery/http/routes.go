package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/recipetube/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log zerolog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	requireUser := handler.AuthMiddleware()

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", handler.SignUp)
			auth.POST("/signin", handler.SignIn)
			auth.POST("/signout", handler.SignOut)
			auth.POST("/verify-email", handler.VerifyEmail)
			auth.POST("/verify-email/resend", handler.ResendVerification)
			auth.POST("/password/forgot", handler.ForgotPassword)
			auth.POST("/password/reset", handler.ResetPassword)
		}

		me := v1.Group("/me", requireUser)
		{
			me.GET("", handler.Me)
			me.DELETE("", handler.DeleteMe)
		}

		videos := v1.Group("/videos")
		{
			videos.GET("/search", requireUser, handler.SearchVideos)
			videos.GET("/popular", handler.PopularVideos)
			videos.GET("/:id", handler.GetVideo)
		}

		recipes := v1.Group("/recipes", requireUser)
		{
			recipes.POST("/extract", handler.ExtractRecipe)
			recipes.GET("", handler.ListRecipes)
			recipes.POST("", handler.SaveRecipe)
			recipes.DELETE("/:videoId", handler.DeleteRecipe)
		}

		v1.GET("/keywords/popular", handler.PopularKeywords)
	}

	// Cron-triggered job routes
	jobs := router.Group("/internal/jobs", CronSecretMiddleware(cfg.Auth.CronSecret))
	{
		jobs.POST("/reset-daily-search-count", handler.ResetDailySearchCount)
		jobs.POST("/schedule", handler.ScheduleJobs)
		jobs.POST("/process", handler.ProcessJobs)
		jobs.POST("/cleanup-tokens", handler.CleanupTokens)
		jobs.POST("/clear-cache", handler.ClearCache)
	}

	return router
}
