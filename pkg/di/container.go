package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"digital-clone/frontend/internal/apiclient"
	"digital-clone/frontend/internal/audio"
	"digital-clone/frontend/internal/render"
	"digital-clone/frontend/internal/session"
	"digital-clone/frontend/internal/web"
	"digital-clone/frontend/internal/ws"
	"digital-clone/frontend/pkg/config"
	"digital-clone/frontend/pkg/grpcserver"
	"digital-clone/frontend/pkg/health"
	"digital-clone/frontend/pkg/jwt"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/middleware"
	"digital-clone/frontend/pkg/observability"
	"digital-clone/frontend/pkg/resilience"
	"digital-clone/frontend/pkg/secrets"
	"digital-clone/frontend/pkg/validator"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the web front
type Container struct {
	Config          *config.Config
	Logger          *logger.Logger
	Secrets         secrets.Manager
	Signer          *jwt.Service
	Breaker         *resilience.CircuitBreaker
	API             *apiclient.Client
	Metrics         *observability.Metrics
	MetricsProvider *observability.MetricsProvider
	Templates       *template.Template
	Registry        *audio.Registry
	Hub             *ws.Hub
	WSDeps          *ws.Deps
	Sessions        *web.Sessions
	Handler         *web.Handler
	Health          *health.Checker
	RateLimiter     *middleware.RateLimiter

	// GRPC is nil unless the gRPC health endpoint is enabled
	GRPC *grpcserver.Server
	// DB is set for the postgres session store
	DB *gorm.DB
	// Redis is set for the redis session store
	Redis *redis.Client

	closers []func(context.Context) error
}

// NewLogger builds the process logger from the logging configuration
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		JSON:   cfg.Logging.Format == "json",
		Output: os.Stderr,
	})
}

// New wires the web front. On error every resource opened so far is
// closed again.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *Container, err error) {
	c := &Container{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	if c.Secrets, err = secrets.NewManager(log); err != nil {
		return nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}
	if vm, ok := c.Secrets.(*secrets.VaultManager); ok {
		c.onClose(func(context.Context) error { vm.Close(); return nil })
	}

	key := c.Secrets.GetSecretWithDefault(ctx, cfg.Security.SessionSecretKey, "")
	if key == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("session secret %q is not set", cfg.Security.SessionSecretKey)
		}
		log.Warn("Session secret not set, using a random key; sessions will not survive restarts")
		key = uuid.NewString()
	}
	c.Signer = jwt.NewService(key, cfg.Session.TTL)

	if cfg.Observability.TracingEnable {
		shutdown, err := observability.SetupTracing(cfg.Observability.ServiceName, os.Stdout)
		if err != nil {
			return nil, err
		}
		c.onClose(shutdown)
	}

	if c.MetricsProvider, err = observability.SetupMetrics(); err != nil {
		return nil, err
	}
	c.onClose(c.MetricsProvider.Shutdown)
	if c.Metrics, err = observability.NewMetricsFrom(c.MetricsProvider); err != nil {
		return nil, err
	}

	if err = c.initAPI(ctx); err != nil {
		return nil, err
	}

	factory, err := c.sessionFactory(ctx)
	if err != nil {
		return nil, err
	}
	c.Sessions = web.NewSessions(c.Signer, factory, cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure)

	if c.Templates, err = render.Templates(); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	c.Registry = audio.NewRegistry(audio.RegistryOptions{
		BasePath:        "/audio",
		TTL:             cfg.Audio.URLTTL,
		MaxItems:        cfg.Audio.MaxURLs,
		CleanupInterval: cfg.Audio.CleanupPeriod,
	}, c.Metrics)
	c.onClose(func(context.Context) error { c.Registry.Close(); return nil })

	c.Hub = ws.NewHub(log)
	c.WSDeps = &ws.Deps{
		Registry:       c.Registry,
		Templates:      c.Templates,
		Metrics:        c.Metrics,
		Log:            log,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		SendTimeout:    cfg.Backend.Timeout,
		AudioTimeout:   cfg.Audio.RequestTimeout,
	}
	c.Handler = web.NewHandler(c.API, c.Sessions, c.Hub, c.WSDeps, c.Metrics)

	c.RateLimiter = middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
	})

	c.initHealth()
	return c, nil
}

func (c *Container) initAPI(ctx context.Context) error {
	cfg := c.Config

	c.Breaker = apiclient.NewBreaker(resilience.Config{
		Name:             "backend",
		FailureThreshold: cfg.Backend.FailureThreshold,
		SuccessThreshold: cfg.Backend.SuccessThreshold,
		RetryTimeout:     cfg.Backend.RetryTimeout,
	}, c.Logger)

	opts := []apiclient.Option{
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
		apiclient.WithBreaker(c.Breaker),
		apiclient.WithMetrics(c.Metrics),
		apiclient.WithLogger(c.Logger),
	}
	if cfg.Backend.ValidateResponses {
		v, err := validator.NewBackendValidator(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, apiclient.WithValidator(v))
		c.Logger.Info("Backend response validation enabled")
	}

	c.API = apiclient.New(cfg.Backend.URL, opts...)
	return nil
}

func (c *Container) sessionFactory(ctx context.Context) (session.Factory, error) {
	cfg := c.Config

	switch cfg.Session.Store {
	case "", "memory":
		return session.NewMemoryFactory(), nil

	case "redis":
		c.Redis = session.NewRedisClient(cfg.Session.RedisURL)
		c.onClose(func(context.Context) error { return c.Redis.Close() })
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		client, prefix, ttl := c.Redis, cfg.Session.KeyPrefix, cfg.Session.TTL
		return func(sid string) session.Persister {
			return session.NewRedisPersister(client, prefix, sid, ttl)
		}, nil

	case "postgres":
		db, err := config.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.DB = db
		c.onClose(func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		if err := session.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate session table: %w", err)
		}
		ttl := cfg.Session.TTL
		return func(sid string) session.Persister {
			return session.NewGormPersister(db, sid, ttl)
		}, nil
	}

	return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
}

func (c *Container) initHealth() {
	cfg := c.Config
	c.Health = health.NewChecker(c.Logger, 30*time.Second)

	c.Health.RegisterAPICheck("backend", cfg.Backend.URL+cfg.Backend.HealthPath, &http.Client{Timeout: 5 * time.Second})

	c.Health.RegisterCheck("backend-breaker", func(context.Context) (health.Status, string, error) {
		if st := c.Breaker.State(); st != resilience.StateClosed {
			return health.StatusDegraded, "circuit " + string(st), nil
		}
		return health.StatusUp, "circuit closed", nil
	})

	c.Health.RegisterCheck("chat-connections", func(context.Context) (health.Status, string, error) {
		return health.StatusUp, fmt.Sprintf("%d open chats, %d audio urls", c.Hub.ActiveConnections(), c.Registry.Len()), nil
	})

	if c.Redis != nil {
		c.Health.RegisterPingCheck("redis", true, func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		})
	}
	if c.DB != nil {
		c.Health.RegisterPingCheck("database", true, func(ctx context.Context) error {
			return config.PingDB(ctx, c.DB)
		})
	}

	if cfg.GRPC.Enabled {
		c.GRPC = grpcserver.New(c.Logger)
		c.Health.OnChange(c.GRPC.SetServing)
	}
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}
