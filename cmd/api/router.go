package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"blackcat/internal/shared/middleware"
	"blackcat/internal/shared/response"
	"blackcat/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupAuthRoutes(v1, c)
		setupUserRoutes(v1, c)
		setupStoryRoutes(v1, c)
	}

	return router
}

// ========================================
// AUTH ROUTES
// ========================================
func setupAuthRoutes(v1 *gin.RouterGroup, c *container.Container) {
	auth := v1.Group("/auth")
	{
		auth.POST("/register", c.UserHandler.Register)
		auth.POST("/login", c.UserHandler.Login)
	}
}

// ========================================
// USER ROUTES
// ========================================
func setupUserRoutes(v1 *gin.RouterGroup, c *container.Container) {
	users := v1.Group("/users")
	users.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		users.GET("", c.UserHandler.SearchWriters)
		users.GET("/me", c.UserHandler.GetProfile)
		users.PUT("/me", c.UserHandler.UpdateProfile)
		users.PUT("/me/password", c.UserHandler.ChangePassword)
	}
}

// ========================================
// STORY ROUTES
// ========================================
func setupStoryRoutes(v1 *gin.RouterGroup, c *container.Container) {
	auth := middleware.AuthMiddleware(c.JWTManager)
	optional := middleware.OptionalAuthMiddleware(c.JWTManager)

	stories := v1.Group("/stories")
	{
		stories.GET("", c.StoryHandler.ListPublicStories)
		stories.POST("", auth, c.StoryHandler.StartStory)

		stories.GET("/personal", auth, c.StoryHandler.ListPersonalStories)
		stories.POST("/personal/active", auth, c.StoryHandler.SetActive)

		stories.GET("/:id", optional, c.StoryHandler.GetStory)
		stories.POST("/:id/snippets", auth, c.StoryHandler.AddSnippet)
		stories.PUT("/:id/snippets/:snippet_id", auth, c.StoryHandler.EditSnippet)

		stories.GET("/:id/print", optional, c.StoryHandler.GetPrintable)
		stories.POST("/:id/print", auth, c.StoryHandler.UpdatePrintSettings)
		stories.GET("/:id/print/export", optional, c.StoryHandler.Export)
	}
}

// ========================================
// HEALTH CHECK
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		dbStatus := "memory"
		if appCtx.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			dbStatus = "ok"
			if err := appCtx.DB.HealthCheck(ctx); err != nil {
				dbStatus = "error: " + err.Error()
				health["status"] = "degraded"
			}
		}

		cacheStatus := "ok"
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := appCtx.Cache.Ping(ctx); err != nil {
			cacheStatus = "error: " + err.Error()
		}

		services := gin.H{
			"database": dbStatus,
			"cache":    cacheStatus,
		}
		if appCtx.Storage != nil {
			storageStatus := "ok"
			if err := appCtx.Storage.HealthCheck(ctx); err != nil {
				storageStatus = "error: " + err.Error()
			}
			services["storage"] = storageStatus
		}
		health["services"] = services

		status := http.StatusOK
		if health["status"] != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, health)
	}
}
