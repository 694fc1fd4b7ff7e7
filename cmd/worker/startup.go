package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/rs/zerolog/log"

	"blackcat/pkg/container"
)

const healthAddr = ":9999"

// HealthChecker performs startup health checks
type HealthChecker struct {
	redisClient *redis.Client
	container   *container.Container
}

// startServices checks dependencies and starts the health endpoint
func startServices(c *container.Container) error {
	log.Info().Str("app", c.Config.App.Name).Msg("Worker starting")

	opt := c.RedisConnOpt()
	checker := &HealthChecker{
		redisClient: redis.NewClient(&redis.Options{
			Addr:     opt.Addr,
			Password: opt.Password,
			DB:       opt.DB,
			MaintNotificationsConfig: &maintnotifications.Config{
				Mode: maintnotifications.ModeDisabled,
			},
		}),
		container: c,
	}
	defer checker.redisClient.Close()

	if err := checker.checkAll(); err != nil {
		return err
	}

	go startHealthCheckServer(c)
	return nil
}

// checkAll runs all health checks
func (h *HealthChecker) checkAll() error {
	checks := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"Redis Connection", h.checkRedis},
		{"Database", h.checkDatabase},
	}

	for _, check := range checks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := check.fn(ctx)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("check", check.name).Msg("Health check failed")
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		log.Info().Str("check", check.name).Msg("Health check OK")
	}
	return nil
}

func (h *HealthChecker) checkRedis(ctx context.Context) error {
	return h.redisClient.Ping(ctx).Err()
}

func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.container.DB == nil {
		return nil
	}
	return h.container.DB.HealthCheck(ctx)
}

// startHealthCheckServer serves /health and /ready for probes
func startHealthCheckServer(c *container.Container) {
	router := gin.New()
	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "UP", "service": "blackcat-worker"})
	})
	router.GET("/ready", func(ctx *gin.Context) {
		if err := c.Cache.Ping(ctx.Request.Context()); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY", "error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "READY"})
	})

	log.Info().Str("addr", healthAddr).Msg("[Health] Starting health check server")
	if err := http.ListenAndServe(healthAddr, router); err != nil {
		log.Error().Err(err).Msg("[Health] Failed to start")
	}
}
