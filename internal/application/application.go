package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eugenenazirov/atlas-packer/internal/api"
	"github.com/eugenenazirov/atlas-packer/internal/atlas"
	"github.com/eugenenazirov/atlas-packer/internal/config"
	"github.com/eugenenazirov/atlas-packer/internal/packer"
	"github.com/eugenenazirov/atlas-packer/internal/storage"
)

const redisPingTimeout = 3 * time.Second

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	packer  packer.Packer
	builder *atlas.Builder
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server

	closers []func() error
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store, closer, err := newStorage(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	p := packer.New(
		packer.WithMaxRectangles(cfg.Packer.MaxRectangles),
		packer.WithZeroSizePolicy(cfg.Packer.ZeroSizePolicy),
	)
	builder := atlas.NewBuilder(p, atlas.WithPowerOfTwo(cfg.Packer.PowerOfTwo))
	handler := api.NewHandler(p, builder, store, api.WithMaxBodyBytes(cfg.MaxBodyBytes))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	app := &App{
		storage: store,
		packer:  p,
		builder: builder,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	return app, nil
}

// newStorage selects the atlas store. The returned closer is nil for
// backends that hold no external resources.
func newStorage(cfg config.StorageConfig, logger *zap.Logger) (storage.Storage, func() error, error) {
	switch cfg.Backend {
	case "", config.StorageMemory:
		return storage.NewMemoryStorage(cfg.MaxAtlases), nil, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Addr, err)
		}

		logger.Info("using redis storage",
			zap.String("addr", cfg.Redis.Addr),
			zap.Int("db", cfg.Redis.DB),
			zap.String("prefix", cfg.Redis.KeyPrefix),
		)
		store := storage.NewRedisStorage(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// BuildRootHandler constructs the root HTTP handler that routes API requests
// and answers 404 for everything else.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.NotFoundHandler())
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases storage connections. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
