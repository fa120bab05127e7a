package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Tafsirchy/thikana/internal/api/handlers"
	"github.com/Tafsirchy/thikana/internal/api/middleware"
	"github.com/Tafsirchy/thikana/internal/config"
	"github.com/Tafsirchy/thikana/internal/email"
	"github.com/Tafsirchy/thikana/internal/metrics"
	"github.com/Tafsirchy/thikana/internal/services"
)

// Dependencies are the services the public API is built on.
type Dependencies struct {
	Listings      services.IListingService
	SavedSearches services.ISavedSearchService
	Users         services.IUserService
	Instant       handlers.PublishHandler
	Digest        handlers.DigestRunner
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, deps Dependencies, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, logger)
	authRequired := middleware.AuthMiddleware(cfg.JwtSecret)

	// Apply global middleware first (order matters)
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.CORSMiddleware(""))

	restListingHandler := handlers.NewRestListingHandler(deps.Listings)
	restSavedSearchHandler := handlers.NewRestSavedSearchHandler(deps.SavedSearches)
	restUserHandler := handlers.NewRestUserHandler(deps.Users)
	adminAlertsHandler := handlers.NewAdminAlertsHandler(deps.Listings, deps.Instant, deps.Digest)

	v1 := r.Group("/v1")
	{
		// Public routes are limited per IP
		public := v1.Group("/", rateLimiter.Limit())
		public.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		public.GET("/listing/:id", restListingHandler.GetListingByID)

		// Authenticated routes are limited per user
		user := v1.Group("/", authRequired, rateLimiter.Limit())
		{
			user.GET("/listing", restListingHandler.GetMyListings)
			user.POST("/listing", restListingHandler.CreateListing)
			user.PATCH("/listing/:id", restListingHandler.UpdateListing)
			user.DELETE("/listing/:id", restListingHandler.DeleteListing)
			user.POST("/listing/:id/publish", restListingHandler.PublishListing)
			user.POST("/listing/:id/unpublish", restListingHandler.UnpublishListing)

			user.GET("/saved-search", restSavedSearchHandler.List)
			user.POST("/saved-search", restSavedSearchHandler.Create)
			user.GET("/saved-search/:id", restSavedSearchHandler.Get)
			user.PATCH("/saved-search/:id", restSavedSearchHandler.Update)
			user.DELETE("/saved-search/:id", restSavedSearchHandler.Delete)

			user.GET("/me", restUserHandler.GetMe)
			user.PUT("/me/notification-preferences", restUserHandler.UpdatePreferences)
			user.POST("/me/push-token", restUserHandler.RegisterPushToken)
			user.DELETE("/me/push-token", restUserHandler.RemovePushToken)
		}

		adminRequired := v1.Group("/admin", authRequired, middleware.AdminMiddleware())
		{
			adminRequired.POST("/alerts/digest/:frequency", adminAlertsHandler.RunDigest)
			adminRequired.POST("/alerts/instant/:id", adminAlertsHandler.ReplayInstant)
		}
	}

	return r
}

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

// SetupServiceRouter configures and returns the internal service Gin engine.
// rdb may be nil, which disables getTestEmail.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, checks map[string]HealthCheck, shutdownChan chan<- struct{}, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		result := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		c.JSON(status, result)
	})

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info("received shutdown command via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("shutdown channel already signaled")
			}
		case "getTestEmail":
			if rdb == nil {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "mail capture is not enabled"})
				return
			}
			var args []string // ["email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [email]"})
				return
			}
			captured, err := email.ReadMockMailbox(c.Request.Context(), rdb, args[0])
			if err != nil {
				logger.Error("service API: reading mock mailbox", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
				return
			}
			if len(captured) == 0 {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("No captured email for %s", args[0])})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": captured})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
