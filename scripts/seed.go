package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/database"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/search"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/postgres"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/typesense"
	"github.com/obiora/CropAdvisoryDesign/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatalf("Failed to connect to Typesense: %v", err)
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize Typesense schema: %v", err)
	}
	searchRepo := search.NewKnowledgeAdapter(tsClient)

	registryRepo := database.NewSourceRegistryAdapter(pgClient)

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				retrieval_audit,
				ingestion_sources
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	// 1. Seed sources
	now := time.Now()
	sources := []entities.IngestionSource{
		{SourceID: "fao-maize-guide", URL: "https://feeds.example.org/fao/maize", Priority: entities.SourcePriorityHigh, FreshnessHours: 168, Tags: []string{"maize"}, LastRefreshedAt: now},
		{SourceID: "cimmyt-disease-atlas", URL: "https://feeds.example.org/cimmyt/diseases", Priority: entities.SourcePriorityHigh, FreshnessHours: 720, Tags: []string{"fungal", "bacterial"}, LastRefreshedAt: now},
		{SourceID: "soil-health-handbook", URL: "https://feeds.example.org/soil/handbook", Priority: entities.SourcePriorityMedium, FreshnessHours: 720, Tags: []string{"soil", "nutrition"}, LastRefreshedAt: now},
		{SourceID: "regional-extension-notes", URL: "https://feeds.example.org/extension/notes", Priority: entities.SourcePriorityLow, FreshnessHours: 72, Tags: []string{"regional"}, LastRefreshedAt: now},
	}

	for i := range sources {
		if err := registryRepo.Upsert(ctx, &sources[i]); err != nil {
			log.Printf("Failed to seed source %s: %v", sources[i].SourceID, err)
		}
	}
	log.Printf("Seeded %d sources", len(sources))

	// 2. Seed a starter corpus so retrieval has something to rank
	chunks := []entities.KnowledgeChunk{
		{ID: "seed-rust-1", SourceID: "cimmyt-disease-atlas", Modality: entities.ModalityText, Topics: []string{"maize", "fungal"}, Content: "Common rust of maize appears as small, powdery, cinnamon-brown pustules scattered on both leaf surfaces. Severe infection before tasseling can reduce yield substantially."},
		{ID: "seed-rust-2", SourceID: "cimmyt-disease-atlas", Modality: entities.ModalityImage, Topics: []string{"maize", "fungal"}, Content: "Close-up photograph of cinnamon-brown rust pustules erupting through the maize leaf epidermis."},
		{ID: "seed-blight-1", SourceID: "cimmyt-disease-atlas", Modality: entities.ModalityText, Topics: []string{"maize", "fungal"}, Content: "Northern corn leaf blight produces long, elliptical, grayish-green lesions that turn tan as they mature, usually starting on the lower leaves."},
		{ID: "seed-nitrogen-1", SourceID: "soil-health-handbook", Modality: entities.ModalityText, Topics: []string{"maize", "nutrition"}, Content: "Nitrogen deficiency in maize shows as a yellowing that starts at the leaf tip and runs down the midrib in a V pattern, appearing first on older leaves."},
		{ID: "seed-phosphorus-1", SourceID: "soil-health-handbook", Modality: entities.ModalityText, Topics: []string{"maize", "nutrition"}, Content: "Phosphorus-deficient maize develops purpling along leaf margins of young plants, most pronounced in cool soils early in the season."},
		{ID: "seed-armyworm-1", SourceID: "fao-maize-guide", Modality: entities.ModalityText, Topics: []string{"maize", "pest"}, Content: "Fall armyworm larvae feed inside the whorl, leaving ragged holes and sawdust-like frass. Scout fields twice weekly once plants emerge."},
	}

	for i := range chunks {
		chunks[i].CreatedAt = now
		if err := searchRepo.Index(ctx, &chunks[i]); err != nil {
			log.Printf("Failed to index chunk %s: %v", chunks[i].ID, err)
		}
	}
	log.Printf("Indexed %d corpus chunks", len(chunks))

	log.Println("Seeding complete")
}
