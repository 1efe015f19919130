package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/data/catalogdb"
	"github.com/yungbote/bookmatch-backend/internal/data/db"
	"github.com/yungbote/bookmatch-backend/internal/data/repos"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	httpapi "github.com/yungbote/bookmatch-backend/internal/http"
	"github.com/yungbote/bookmatch-backend/internal/http/handlers"
	"github.com/yungbote/bookmatch-backend/internal/http/middleware"
	"github.com/yungbote/bookmatch-backend/internal/jobs/scheduler"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
	"github.com/yungbote/bookmatch-backend/internal/platform/sshtunnel"
	"github.com/yungbote/bookmatch-backend/internal/platform/vectorstore"
	"github.com/yungbote/bookmatch-backend/internal/services"
)

type Services struct {
	Index          services.BookIndex
	Crawler        services.HashtagCrawler
	Sync           services.CatalogSynchronizer
	Classifier     services.Classifier
	Enricher       *services.Enricher
	Intake         services.BookIntake
	Recommendation services.RecommendationResolver
	Sweep          services.RecommendationSweep
	Ingest         services.BestsellerIngest
	Reconciler     services.Reconciler
}

type App struct {
	Log       *logger.Logger
	Cfg       *Config
	DB        *gorm.DB
	Metrics   *observability.Metrics
	Store     catalogdb.Store
	Vectors   vectorstore.Store
	Clients   Clients
	Services  Services
	Scheduler *scheduler.Scheduler
	Server    *httpapi.Server

	taxonomy     catalog.Taxonomy
	closers      []io.Closer
	otelShutdown func(context.Context) error
}

// New connects every backing store and client and wires the services. On
// error everything opened so far is closed.
func New(ctx context.Context, cfg *Config) (_ *App, err error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     cfg.Otel.Headers,
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})
	if cfg.Metrics.Enabled {
		a.Metrics = observability.NewMetrics()
	}

	if err := a.openStores(ctx); err != nil {
		return nil, err
	}

	a.Clients, err = wireClients(ctx, log, cfg, a.Metrics)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Clients.Cache)

	a.wireServices()

	a.Scheduler, err = scheduler.New(log, repos.NewJobRunRepo(a.DB, log), a.Metrics,
		scheduler.RecommendationSweepJob(cfg.Schedule.Recommendation, a.Services.Sweep),
		scheduler.BestsellerIngestJob(cfg.Schedule.Bestseller, a.Services.Ingest),
	)
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Log:                   log,
		Metrics:               a.Metrics,
		ServiceName:           cfg.Otel.ServiceName,
		TracingEnabled:        cfg.Otel.Enabled,
		CORSOrigins:           cfg.HTTP.CORSOrigins,
		AuthMiddleware:        middleware.NewAuthMiddleware(log, cfg.Auth.JWTSecret),
		BookHandler:           handlers.NewBookHandler(a.Services.Intake, a.Services.Index),
		RecommendationHandler: handlers.NewRecommendationHandler(a.Services.Recommendation),
		CatalogToolsHandler:   handlers.NewCatalogToolsHandler(a.Services.Classifier, a.Services.Crawler, a.Clients.OpenAI),
		AdminHandler:          handlers.NewAdminHandler(a.Services.Reconciler),
		JobHandler:            handlers.NewJobHandler(a.Scheduler),
		HealthHandler:         handlers.NewHealthHandler(readiness{store: a.Store, vectors: a.Vectors}),
	})
	a.Server = httpapi.NewServer(log, cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout)
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Cfg
	tunnelCfg := sshtunnel.Config{
		Host:           cfg.SSHTunnel.Host,
		Port:           cfg.SSHTunnel.Port,
		User:           cfg.SSHTunnel.User,
		PrivateKeyPath: cfg.SSHTunnel.PrivateKeyPath,
		KnownHostsPath: cfg.SSHTunnel.KnownHostsPath,
		Timeout:        cfg.SSHTunnel.Timeout,
	}
	if tunnelCfg.Enabled() {
		tunnel, err := sshtunnel.Open(ctx, a.Log, tunnelCfg)
		if err != nil {
			return fmt.Errorf("open ssh tunnel: %w", err)
		}
		tunnel.RegisterMySQL(db.MySQLTunnelNetwork())
		a.closers = append(a.closers, tunnel)
	}

	port := ""
	if cfg.DB.Port > 0 {
		port = strconv.Itoa(cfg.DB.Port)
	}
	gdb, err := db.Open(ctx, a.Log, db.Config{
		Driver:        cfg.DB.Driver,
		DSN:           cfg.DB.DSN,
		Host:          cfg.DB.Host,
		Port:          port,
		User:          cfg.DB.User,
		Password:      cfg.DB.Password,
		Name:          cfg.DB.Name,
		MaxOpenConns:  cfg.DB.MaxOpenConns,
		MaxIdleConns:  cfg.DB.MaxIdleConns,
		SlowThreshold: cfg.DB.SlowThreshold,
		Tunneled:      tunnelCfg.Enabled(),
	})
	if err != nil {
		return err
	}
	a.DB = gdb
	if sqlDB, err := gdb.DB(); err == nil {
		a.closers = append(a.closers, sqlDB)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	a.taxonomy, err = catalog.DefaultTaxonomy()
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}
	seeded, err := db.SeedTaxonomy(ctx, gdb, a.Log, a.taxonomy)
	if err != nil {
		return err
	}
	a.Log.Info("Seeded sub categories", "count", seeded)
	a.Store = catalogdb.New(gdb, a.Log, repos.NewSet(gdb, a.Log))

	vs, err := openVectorStore(ctx, a.Log, cfg.Vector)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	a.Vectors = vs
	a.closers = append(a.closers, vs)
	return nil
}

func (a *App) wireServices() {
	log, m, cfg := a.Log, a.Metrics, a.Cfg

	metadata := &cachedMetadata{
		log:   log,
		inner: a.Clients.Aladin,
		cache: withLookupMetrics(a.Clients.Cache, "metadata", m),
		ttl:   cfg.Redis.TTL,
	}
	s := &a.Services
	s.Crawler = &cachedCrawler{
		log:   log,
		inner: a.Clients.Kyobo,
		cache: withLookupMetrics(a.Clients.Cache, "hashtags", m),
		ttl:   cfg.Redis.TTL,
	}
	alerter := &observability.DriftAlerter{
		WebhookURL:  cfg.Drift.WebhookURL,
		MinInterval: cfg.Drift.MinInterval,
	}

	s.Index = services.NewBookIndex(log, a.Vectors, a.Clients.OpenAI, m)
	s.Sync = services.NewCatalogSynchronizer(log, a.Store, s.Index, m)
	s.Classifier = services.NewCategoryClassifier(log, a.Clients.OpenAI, a.taxonomy, m)
	s.Enricher = services.NewEnricher(log, s.Crawler, s.Classifier, m)
	s.Intake = services.NewBookIntake(log, metadata, s.Enricher, s.Sync, m)
	s.Recommendation = services.NewRecommendationResolver(log, a.Store, s.Index, m, alerter)
	s.Sweep = services.NewRecommendationSweep(log, a.Store, s.Recommendation)
	s.Ingest = services.NewBestsellerIngest(log, a.Clients.Aladin, a.Store, s.Enricher, s.Sync, m)
	s.Reconciler = services.NewReconciler(log, a.Store, s.Index, m, alerter)
}

// Run supervises the HTTP server, and the scheduler when enabled, until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	root := newSupervisor(a.Log, a.Cfg.HTTP.ShutdownTimeout)
	root.Add(a.Server)
	if a.Cfg.Schedule.Enabled {
		root.Add(a.Scheduler)
	} else {
		a.Log.Info("Job scheduler disabled; jobs run only on demand")
	}
	a.Log.Info("Starting services", "addr", a.Cfg.HTTP.Addr)
	err := root.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && a.Log != nil {
			a.Log.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

type readiness struct {
	store   catalogdb.Store
	vectors vectorstore.Store
}

func (r readiness) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("relational store: %w", err)
	}
	if err := r.vectors.Ping(ctx); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	return nil
}
