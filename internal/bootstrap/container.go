package bootstrap

import (
	"context"
	"fmt"

	"advising-chat/internal/cache"
	"advising-chat/internal/config"
	"advising-chat/internal/controller"
	"advising-chat/internal/events"
	"advising-chat/internal/identity"
	"advising-chat/internal/pkg/logger"
	"advising-chat/internal/pkg/serverutils"
	"advising-chat/internal/remote"
	"advising-chat/internal/service"
	"advising-chat/internal/session"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "advising-chat:"

type Container struct {
	// Controllers
	ChatController controller.IChatController
	AuthController controller.IAuthController

	// Services
	ConversationService service.IConversationService
	UserService         service.IUserService

	// Infrastructure
	Logger    logger.ILogger
	Store     cache.Store
	Remote    *remote.Client
	Publisher events.Publisher
	Registry  *session.Registry

	redisClient *redis.Client
	cancel      context.CancelFunc
}

func NewContainer(cfg *config.Config) (*Container, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	zapLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	c := &Container{Logger: zapLogger, cancel: cancel}

	// 1. Durable cache backend
	store, rdb, err := NewStore(ctx, cfg.Cache, zapLogger)
	if err != nil {
		cancel()
		return nil, err
	}
	c.Store = store
	c.redisClient = rdb

	// 2. Remote store and events
	c.Remote = remote.NewClient(remote.Endpoints{ChatURL: cfg.Remote.ChatAPI, CrudURL: cfg.Remote.CrudAPI}, cfg.Remote.Timeout)
	c.Publisher = events.NewPublisher(ctx, cfg.App.NatsURL, zapLogger)

	// 3. One session manager per signed-in identity
	policy := cache.DefaultPolicy()
	policy.TTL = cfg.Cache.TTL
	opts := session.DefaultOptions()
	opts.MaxQueryLength = cfg.Session.MaxQueryLength
	opts.RemoteTimeout = cfg.Remote.Timeout

	c.Registry = session.NewRegistry(cfg.Session.IdleTimeout, func(identityId string, bearer *identity.BearerSession) *session.Manager {
		accessor := cache.NewAccessor(store, identityId, policy, zapLogger)
		return session.NewManager(bearer, accessor, c.Remote, c.Publisher, zapLogger, opts)
	})

	// 4. Services and controllers
	auth := serverutils.NewJwtMiddleware(cfg.Auth.JwtSecret)
	c.ConversationService = service.NewConversationService(c.Registry, zapLogger)
	c.UserService = service.NewUserService(c.Remote, zapLogger)
	c.ChatController = controller.NewChatController(c.ConversationService, auth)
	c.AuthController = controller.NewAuthController(c.UserService, auth)

	return c, nil
}

// NewStore opens the configured cache backend. An unreachable redis falls back to memory.
func NewStore(ctx context.Context, cfg config.CacheConfig, log logger.ILogger) (cache.Store, *redis.Client, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("Bootstrap", "Redis unavailable, falling back to in-memory cache", map[string]interface{}{"error": err.Error()})
			return cache.NewMemoryStore(), nil, nil
		}
		// Entries are validated by age on read; the redis expiry only garbage-collects abandoned ones.
		return cache.NewRedisStore(rdb, redisKeyPrefix, 24*cfg.TTL), rdb, nil
	case config.CacheBackendMemory:
		return cache.NewMemoryStore(), nil, nil
	default:
		store, err := cache.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache directory: %w", err)
		}
		return store, nil, nil
	}
}

func (c *Container) Close() {
	c.Registry.Close()
	c.Publisher.Close()
	if c.redisClient != nil {
		c.redisClient.Close()
	}
	c.cancel()
	c.Logger.Sync()
}
