package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/cache"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/database"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/search"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/api/handlers"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/api/routes"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/application/services"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/openai"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/postgres"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/redis"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/typesense"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/observability"
	"github.com/obiora/CropAdvisoryDesign/backend/pkg/config"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	var cacheProvider providers.CacheProvider
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		// Idempotency dedupe degrades gracefully without Redis
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatalf("Failed to initialize Typesense client: %v", err)
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize Typesense schema: %v", err)
	}

	generator, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("Failed to initialize generation client: %v", err)
	}

	searchRepo := search.NewKnowledgeAdapter(tsClient)
	var registryRepo repositories.SourceRegistryRepository = database.NewSourceRegistryAdapter(pgClient)
	if cacheProvider != nil {
		registryRepo = database.NewCachedSourceRegistryAdapter(registryRepo, cacheProvider)
	}
	auditRepo := database.NewRetrievalAuditAdapter(pgClient)

	assembler := services.NewContextAssemblerService(cfg.Retrieval.RelevanceThreshold, cfg.Retrieval.TokenBudget)
	recommender := services.NewRecommendationService(generator, cfg.Retrieval.MaxAttempts, metrics)
	auditor := services.NewRetrievalAuditService(auditRepo, cfg.Retrieval.MissedThreshold, metrics)
	diagnosisService := services.NewDiagnosisService(searchRepo, assembler, recommender, auditor, cfg.Retrieval.SearchLimit, metrics)
	registryService := services.NewSourceRegistryService(registryRepo)

	diagnosisHandler := handlers.NewDiagnosisHandler(diagnosisService, cacheProvider)
	sourceHandler := handlers.NewSourceHandler(registryService)
	router := routes.NewRouter(diagnosisHandler, sourceHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("Diagnosis API listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
