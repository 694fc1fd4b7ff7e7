package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"blackcat/internal/config"
	infraCache "blackcat/internal/infrastructure/cache"
	"blackcat/internal/infrastructure/database"
	"blackcat/internal/infrastructure/email"
	"blackcat/internal/infrastructure/storage"
	"blackcat/pkg/cache"
	"blackcat/pkg/jwt"

	storyHandler "blackcat/internal/domains/story/handler"
	"blackcat/internal/domains/story/notification"
	storyRepo "blackcat/internal/domains/story/repository"
	storyService "blackcat/internal/domains/story/service"
	"blackcat/internal/domains/user"
	userHandler "blackcat/internal/domains/user/handler"
	userRepo "blackcat/internal/domains/user/repository"
	userService "blackcat/internal/domains/user/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every long-lived dependency of the API and the worker.
// Build order: config, infrastructure, repositories, services, handlers.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config      *config.Config
	DB          *database.PostgresDB // nil with STORE_DRIVER=memory
	Cache       cache.Cache
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client // nil unless NOTIFY_MODE=queue
	Storage     *storage.MinIOStorage
	Email       email.EmailService

	// ========================================
	// REPOSITORY LAYER
	// ========================================
	UserRepo  user.Repository
	StoryRepo storyRepo.StoryRepository

	// ========================================
	// SERVICE LAYER
	// ========================================
	UserService  user.Service
	Notifier     *notification.Notifier
	TurnEngine   *storyService.TurnEngine
	StoryService *storyService.StoryService

	// ========================================
	// HANDLER LAYER
	// ========================================
	UserHandler  *userHandler.UserHandler
	StoryHandler *storyHandler.StoryHandler
}

// NewContainer loads the configuration and builds the dependency graph
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewContainerWithConfig(cfg)
}

// NewContainerWithConfig builds the dependency graph from cfg
func NewContainerWithConfig(cfg *config.Config) (*Container, error) {
	log.Println("Initializing DI Container...")
	c := &Container{Config: cfg}

	// ========================================
	// STEP 1: INFRASTRUCTURE
	// ========================================
	if err := c.initDatabase(); err != nil {
		return nil, err
	}
	c.initCache()
	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	c.Email = email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.From,
	})

	if cfg.Email.NotifyMode == "queue" {
		c.AsynqClient = asynq.NewClient(c.RedisConnOpt())
	}

	if cfg.MinIO.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("failed to init minio: %w", err)
		}
		c.Storage = store
		log.Printf("MinIO ready (bucket: %s)", cfg.MinIO.Bucket)
	}

	// ========================================
	// STEP 2: REPOSITORIES
	// ========================================
	c.initRepositories()

	// ========================================
	// STEP 3: SERVICES
	// ========================================
	c.initServices()

	// ========================================
	// STEP 4: HANDLERS
	// ========================================
	c.initHandlers()

	log.Println("DI Container initialized successfully")
	return c, nil
}

// RedisConnOpt is shared by the asynq client, server and scheduler
func (c *Container) RedisConnOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initDatabase() error {
	if c.Config.App.StoreDriver == "memory" {
		log.Println("Using in-memory store (STORE_DRIVER=memory)")
		return nil
	}

	dbCfg, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}
	db := database.NewPostgresDB(dbCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if c.Config.Database.AutoMigrate {
		if err := database.Migrate(db.Config.DSN()); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	c.DB = db
	log.Println("Database connected")
	return nil
}

// initCache falls back to the in-process cache when Redis is unreachable.
// Lockout counters are then per process.
func (c *Container) initCache() {
	redisCache := infraCache.NewRedisCache(c.Config.Redis.Host, c.Config.Redis.Password, c.Config.Redis.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisCache.Connect(ctx); err != nil {
		log.Printf("Redis connection failed (non-critical), using memory cache: %v", err)
		_ = redisCache.Close()
		c.Cache = cache.NewMemoryCache()
		return
	}

	log.Println("Redis connected")
	c.Cache = redisCache
}

func (c *Container) initRepositories() {
	if c.DB == nil {
		users := userRepo.NewMemoryRepository()
		c.UserRepo = users
		c.StoryRepo = storyRepo.NewMemoryRepository(users)
		return
	}

	c.UserRepo = userRepo.NewPostgresRepository(c.DB.Pool, c.Cache)
	c.StoryRepo = storyRepo.NewPostgresRepository(c.DB.Pool)
}

func (c *Container) initServices() {
	c.UserService = userService.NewUserService(c.UserRepo, c.Cache, c.JWTManager)

	var sink notification.Sink
	if c.AsynqClient != nil {
		sink = notification.NewQueueSink(c.AsynqClient)
	} else {
		sink = email.NewNotificationSender(c.Email)
	}
	c.Notifier = notification.NewNotifier(sink, notification.Templates{
		SiteDomain: c.Config.Site.Domain,
		From:       c.Config.Email.From,
	})

	c.TurnEngine = storyService.NewTurnEngine(c.StoryRepo, c.Notifier, c.Cache)

	// A typed nil *MinIOStorage would make the archive look configured
	var archive storyService.Archiver
	if c.Storage != nil {
		archive = c.Storage
	}
	c.StoryService = storyService.NewStoryService(c.StoryRepo, c.TurnEngine, c.UserRepo, c.Cache, c.Notifier, archive)
}

func (c *Container) initHandlers() {
	c.UserHandler = userHandler.NewUserHandler(c.UserService)
	c.StoryHandler = storyHandler.NewStoryHandler(c.StoryService)
}

// Cleanup releases connections; call it on shutdown
func (c *Container) Cleanup() {
	log.Println("Cleaning up container resources...")

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("Failed to close asynq client: %v", err)
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}

	if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
		if err := rc.Close(); err != nil {
			log.Printf("Failed to close Redis: %v", err)
		}
	}

	log.Println("Container cleanup completed")
}
