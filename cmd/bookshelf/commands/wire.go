package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"bookshelf/internal/app"
	"bookshelf/internal/config"
	"bookshelf/internal/ratelimit"
	"bookshelf/pkg/store"
)

const rateWindow = time.Minute

// loadConfig reads the dotenv file, when present, then the YAML config.
func loadConfig() (config.FileConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return config.FileConfig{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return config.Load(configPath)
}

func openStore(ctx context.Context, cfg config.FileConfig) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return store.NewGormStore(cfg.DatabaseURL)
	case config.DriverMongo:
		return store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// components are the long-lived collaborators shared by the subcommands.
type components struct {
	store           store.Store
	redis           *redis.Client
	app             *app.App
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
}

func (c *components) close(ctx context.Context) {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			slog.Warn("close redis", "err", err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(ctx); err != nil {
			slog.Warn("close store", "err", err)
		}
	}
}

func wire(ctx context.Context, cfg config.FileConfig) (*components, error) {
	storeTimeout, err := config.ParseStoreTimeout(cfg.StoreTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse store timeout: %w", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("parse session TTL: %w", err)
	}
	leeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		return nil, fmt.Errorf("parse jwt leeway: %w", err)
	}

	c := &components{}
	c.store, err = openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var revoker store.TokenRevoker
	if cfg.RedisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := c.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			c.close(ctx)
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		revoker = store.NewRedisTokenRevoker(c.redis, "")
		if c.loginLimiter, err = newLimiter(c.redis, "login", cfg.LoginRateLimitPerMinute); err != nil {
			c.close(ctx)
			return nil, err
		}
		if c.registerLimiter, err = newLimiter(c.redis, "register", cfg.RegisterRateLimitPerMinute); err != nil {
			c.close(ctx)
			return nil, err
		}
	} else {
		slog.Warn("redisAddr not set; logout revocations are per process and rate limiting is off")
		revoker = store.NewMemoryTokenRevoker()
	}

	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      sessionTTL,
		Leeway:   leeway,
	})
	if err != nil {
		c.close(ctx)
		return nil, fmt.Errorf("init sessions: %w", err)
	}
	c.app, err = app.New(app.Config{Store: c.store, Sessions: sessions, StoreTimeout: storeTimeout})
	if err != nil {
		c.close(ctx)
		return nil, fmt.Errorf("init app: %w", err)
	}
	return c, nil
}

// newLimiter returns nil for a zero limit, which disables throttling.
func newLimiter(client *redis.Client, name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
	if limit == 0 {
		return nil, nil
	}
	limiter, err := ratelimit.NewFixedWindowLimiter(client, "bookshelf:ratelimit:"+name, limit, rateWindow)
	if err != nil {
		return nil, fmt.Errorf("init %s limiter: %w", name, err)
	}
	return limiter, nil
}

func ensureAdmin(ctx context.Context, a *app.App, email, password string) error {
	user, created, err := a.EnsureAdmin(ctx, email, password)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		slog.Info("admin account created", "email", user.Email, "user_id", user.ID)
	} else {
		slog.Info("admin account exists", "email", user.Email, "role", user.Role)
	}
	return nil
}
