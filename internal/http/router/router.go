package router

import (
	"github.com/gin-gonic/gin"

	"github.com/abhishek00112233/LMS-Backend/internal/config"
	"github.com/abhishek00112233/LMS-Backend/internal/http/handlers"
	"github.com/abhishek00112233/LMS-Backend/internal/http/middleware"
)

// SetupRouter wires middleware and routes.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		api.POST("/send-otp", authHandler.SendOTP)
		api.POST("/verify-otp", authHandler.VerifyOTP)
		api.POST("/login", authHandler.Login)
	}

	return r
}
