package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/cache"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/database"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/queue"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/search"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/application/services"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/postgres"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/redis"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/sourcefetch"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/typesense"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/observability"
	"github.com/obiora/CropAdvisoryDesign/backend/pkg/config"
)

func main() {
	_ = godotenv.Load()

	var intervalFlag string
	flag.StringVar(&intervalFlag, "interval", "", "poll interval between batch receives (e.g. 30s, 5m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("INGESTION_POLL_INTERVAL"))
	}
	interval := 5 * time.Second
	if intervalValue != "" {
		parsed, err := time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if parsed <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
		interval = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger("crop-advisory-ingestor", os.Getenv("APP_ENV"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()

	queueAdapter, err := queue.NewRedisStreamAdapter(ctx, redisClient,
		cfg.Ingestion.Stream, cfg.Ingestion.ConsumerGroup, cfg.Ingestion.Consumer)
	if err != nil {
		log.Fatalf("Failed to initialize queue adapter: %v", err)
	}
	defer queueAdapter.Close()

	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatalf("Failed to initialize Typesense client: %v", err)
	}
	if err := typesenseClient.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize Typesense schema: %v", err)
	}
	searchRepo := search.NewKnowledgeAdapter(typesenseClient)

	cacheProvider := cache.NewRedisAdapter(redisClient)
	registryRepo := database.NewCachedSourceRegistryAdapter(database.NewSourceRegistryAdapter(pgClient), cacheProvider)
	registryService := services.NewSourceRegistryService(registryRepo)
	corpusService := services.NewCorpusIngestionService(sourcefetch.NewClient(), searchRepo, cfg.Ingestion.ChunkSize)
	worker := services.NewIngestionBatchService(registryService, corpusService, metrics)

	log.Printf("Ingestion worker consuming %s (group %s) every %s", cfg.Ingestion.Stream, cfg.Ingestion.ConsumerGroup, interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Ingestion worker shutting down")
			return
		default:
		}

		messages, err := queueAdapter.ReceiveBatch(ctx, cfg.Ingestion.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Ingestion worker shutting down")
				return
			}
			log.Printf("Failed to receive batch: %v", err)
			sleep(ctx, interval)
			continue
		}

		if len(messages) == 0 {
			sleep(ctx, interval)
			continue
		}

		result := worker.ProcessBatch(ctx, messages)
		acked := successfulIDs(messages, result)
		if len(acked) > 0 {
			if err := queueAdapter.Ack(ctx, acked...); err != nil {
				log.Printf("Failed to ack messages: %v", err)
			}
		}
		log.Printf("Processed batch: %d messages, %d failed", len(messages), len(result.BatchItemFailures))
	}
}

// successfulIDs returns the ids of messages absent from the failure list;
// only those are acknowledged, so the queue redelivers the failed subset.
func successfulIDs(messages []providers.QueueMessage, result entities.BatchResult) []string {
	failed := make(map[string]struct{}, len(result.BatchItemFailures))
	for _, f := range result.BatchItemFailures {
		failed[f.ItemIdentifier] = struct{}{}
	}
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		if _, ok := failed[m.ID]; !ok {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
