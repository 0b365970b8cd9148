package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/amaumene/gostremiodebrid/internal/cache"
	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/database"
	"github.com/amaumene/gostremiodebrid/internal/debrid"
	"github.com/amaumene/gostremiodebrid/internal/handlers"
	"github.com/amaumene/gostremiodebrid/internal/indexer"
	"github.com/amaumene/gostremiodebrid/internal/metadata"
	"github.com/amaumene/gostremiodebrid/internal/metrics"
	"github.com/amaumene/gostremiodebrid/internal/middleware"
	"github.com/amaumene/gostremiodebrid/internal/scheduler"
	"github.com/amaumene/gostremiodebrid/internal/services"
	"github.com/amaumene/gostremiodebrid/internal/torrentinfo"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
)

const shutdownTimeout = 15 * time.Second

// app owns everything that must be closed on shutdown.
type app struct {
	cfg       *config.Config
	logger    logger.Logger
	db        *database.BoltDB
	redis     *cache.Redis
	scheduler *scheduler.Scheduler
	server    *http.Server
}

func serve(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func newLogger(cfg *config.Config) logger.Logger {
	level := cfg.Log.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	return logger.NewWithConfig(logger.Config{Level: level, Format: cfg.Log.Format, Path: cfg.Log.Path})
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: newLogger(cfg)}

	db, err := database.NewBolt(filepath.Join(cfg.DataDir, "data.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db
	a.logger.Infof("[App] bbolt database opened in %s", cfg.DataDir)

	var store cache.Store
	var memory *cache.Memory
	if cfg.Redis.URL != "" {
		a.redis, err = cache.NewRedisFromURL(cfg.Redis.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		store = a.redis
		a.logger.Infof("[App] using redis cache store")
	} else {
		memory = cache.NewMemory(cfg.Cache.Size)
		store = memory
	}

	registry := debrid.NewRegistry(a.logger)
	tmdb := metadata.NewTMDB(cfg.TMDB.BaseURL, cfg.TMDB.APIKey, store, a.logger)
	indexers := []indexer.Indexer{
		indexer.NewYggflix(cfg.Yggflix.URL, cfg.Yggflix.Passkey, store, a.logger),
	}
	infos := torrentinfo.NewService(db, a.logger)

	searcher := services.NewSearcher(cfg, indexers, infos, a.logger)
	downloader := services.NewDownloader(cfg, infos, store, a.logger)
	next := services.NewNextEpisode(tmdb, searcher, downloader, a.logger)
	downloader.SetPreparer(next)
	streamer := services.NewStreamer(registry, tmdb, searcher, next, a.logger)

	limiter := ratelimiter.NewKeyedLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window())

	a.scheduler, err = scheduler.New(a.logger)
	if err != nil {
		a.close()
		return nil, err
	}
	housekeeping := scheduler.Housekeeping{
		TorrentInfos: infos,
		Retention:    cfg.TorrentInfos.Retention,
		Limiter:      limiter,
	}
	if memory != nil {
		housekeeping.Memory = memory
	}
	for _, task := range housekeeping.Tasks(a.logger) {
		if err := a.scheduler.Register(task); err != nil {
			a.close()
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	health := []handlers.HealthCheck{
		{Name: "database", Check: func(context.Context) error { return db.Ping() }},
	}
	if a.redis != nil {
		health = append(health, handlers.HealthCheck{Name: "redis", Check: a.redis.Ping})
	}

	h := handlers.New(cfg, handlers.Dependencies{
		Streams:   streamer,
		Downloads: downloader,
		Providers: registry,
		Indexers:  indexers,
		Limiter:   limiter,
		Health:    health,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, a.logger)

	a.server = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           newRouter(cfg, h, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func newRouter(cfg *config.Config, h *handlers.Handler, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	if !cfg.Server.TrustProxy {
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.ClientIP())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	h.RegisterRoutes(r)
	return r
}

func (a *app) run(ctx context.Context) error {
	a.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("[App] starting HTTP server on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Infof("[App] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

func (a *app) close() {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Warnf("[App] scheduler stop: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warnf("[App] redis close: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warnf("[App] database close: %v", err)
		}
	}
	_ = logger.Close(a.logger)
}
