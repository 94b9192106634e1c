package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookshelf/pkg/store"
)

const defaultStoreTimeout = 5 * time.Second

// Config holds the collaborators of the core application.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	// StoreTimeout bounds every store call; zero means five seconds.
	StoreTimeout time.Duration
}

// App implements the library catalog: accounts, books and reviews.
type App struct {
	store        store.Store
	sessions     store.SessionStore
	storeTimeout time.Duration
	now          func() time.Time
	newID        func() string
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("app: store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("app: session store is required")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	return &App{
		store:        cfg.Store,
		sessions:     cfg.Sessions,
		storeTimeout: cfg.StoreTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}, nil
}

// Ready reports whether the store answers.
func (a *App) Ready(ctx context.Context) error {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	return a.store.Ping(ctx)
}

func (a *App) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.storeTimeout)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
