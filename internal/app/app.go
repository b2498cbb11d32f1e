package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/database"
	"github.com/deepscholar/core/internal/llm"
	"github.com/deepscholar/core/internal/middleware"
	"github.com/deepscholar/core/internal/modules/aicontent"
	"github.com/deepscholar/core/internal/modules/discuss"
	"github.com/deepscholar/core/internal/modules/library"
	"github.com/deepscholar/core/internal/modules/overview"
	"github.com/deepscholar/core/internal/modules/translate"
	pkgcron "github.com/deepscholar/core/internal/pkg/cron"
	pkgredis "github.com/deepscholar/core/internal/pkg/redis"
	"github.com/deepscholar/core/internal/retrieval"
	"github.com/deepscholar/core/internal/vector"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
}

// New initializes the application: config → DB → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	// Redis backs the single-flight generation lock and the rate
	// limiter. Both degrade gracefully, so a missing redis only warns.
	rc, err := pkgredis.Connect(cfg.Redis.URLValue())
	if err != nil {
		logger.Warn("redis unavailable, generation locking disabled", zap.Error(err))
		rc = nil
	}

	model := llm.NewClient(cfg.AI)

	provider, embedModel := cfg.AI.EmbeddingProvider()
	if provider == nil {
		return nil, errors.New("no enabled AI provider for embeddings")
	}
	embedder, err := vector.NewOpenAIEmbedder(provider.Endpoint, provider.APIKey, embedModel)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	descriptions := make(map[string]string, len(cfg.Vector.Collections))
	for _, col := range cfg.Vector.Collections {
		descriptions[col.Name] = col.Description
	}
	index, err := vector.NewRESTIndex(cfg.Vector.Endpoint, cfg.Vector.Token, descriptions)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}

	lib := library.NewService(db)
	ret := retrieval.NewService(model, embedder, index, cfg.Retrieval, cfg.Vector,
		retrieval.WithLogger(logger))
	trans := translate.NewService(model, translate.NewConceptStore(lib), cfg.Translate,
		translate.WithLogger(logger))

	contentOpts := []aicontent.ServiceOption{aicontent.WithLogger(logger)}
	if rc != nil {
		contentOpts = append(contentOpts, aicontent.WithRedis(rc))
	}
	content := aicontent.NewService(db, model, lib, cfg.Cache, contentOpts...)
	ov := overview.NewService(model, ret, trans, lib, cfg.Overview, overview.WithLogger(logger))
	disc := discuss.NewService(db, model, ret, content, lib, cfg.Discuss, discuss.WithLogger(logger))

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(corsMiddleware(cfg))
	if rc != nil {
		router.Use(middleware.RateLimit(rc.Raw()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New()
	registerCronJobs(sched, logger, content, disc)
	go sched.Start(ctx)

	app := &App{cfg: cfg, router: router, db: db, logger: logger, cancel: cancel, sched: sched}
	app.registerRoutes(content, ov, disc)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and closes the database pool.
func (a *App) Shutdown() {
	a.cancel()
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
}
