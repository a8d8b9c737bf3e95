package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/FossRust/sme-suite/pkg/config"
	"github.com/FossRust/sme-suite/pkg/database"
	"github.com/FossRust/sme-suite/pkg/handlers"
	"github.com/FossRust/sme-suite/pkg/logging"
	"github.com/FossRust/sme-suite/pkg/metrics"
	"github.com/FossRust/sme-suite/pkg/middleware"
	"github.com/FossRust/sme-suite/pkg/repositories"
	"github.com/FossRust/sme-suite/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is not actionable

	connStr := cfg.Database.ConnectionString()
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(connStr)))

	ctx := context.Background()

	// Migrations run over database/sql; the application itself uses pgx.
	migrationDB, err := sql.Open("pgx", connStr)
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	stageMetaRepo := repositories.NewStageMetaRepository()
	catalogTTL := time.Duration(cfg.Pipeline.CatalogTTLSeconds) * time.Second
	catalog := services.NewStageCatalogService(stageMetaRepo, catalogTTL, logger)

	if cfg.Pipeline.StagesFile != "" {
		scope, err := db.WithoutOrg(ctx)
		if err != nil {
			logger.Fatal("Failed to acquire connection for stage seed", zap.Error(err))
		}
		seedCtx := database.SetOrgScope(ctx, scope)
		if err := catalog.SeedFromFile(seedCtx, cfg.Pipeline.StagesFile); err != nil {
			scope.Close()
			logger.Fatal("Failed to seed stage catalog", zap.Error(err))
		}
		scope.Close()
	}

	dealRepo := repositories.NewDealRepository()
	historyRepo := repositories.NewStageHistoryRepository()
	activityRepo := repositories.NewActivityRepository()
	companyRepo := repositories.NewCompanyRepository()
	contactRepo := repositories.NewContactRepository()
	searchRepo := repositories.NewSearchRepository()
	reportRepo := repositories.NewReportRepository()

	dealStageService := services.NewDealStageService(dealRepo, historyRepo, activityRepo, m, logger)
	searchService := services.NewSearchService(searchRepo, companyRepo, contactRepo, dealRepo, m, logger)
	pipelineService := services.NewPipelineService(dealRepo, catalog, m, logger)
	reportService := services.NewReportService(reportRepo, catalog, m, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(logger))

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	crmHandler := handlers.NewCRMHandler(dealStageService, searchService, pipelineService, reportService, catalog, logger)
	orgScopes := database.NewOrgScopeProvider(db)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OrgScope(orgScopes, logger))
		crmHandler.RegisterRoutes(r)
	})

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting sme-suite", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
