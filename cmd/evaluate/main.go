package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/adapters/search"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/evaluation"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/typesense"
	"github.com/obiora/CropAdvisoryDesign/backend/pkg/config"
)

func main() {
	_ = godotenv.Load()

	var goldenPath string
	flag.StringVar(&goldenPath, "golden", "testdata/golden_cases.json", "path to the golden case set")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cases, err := evaluation.LoadGoldenCases(goldenPath)
	if err != nil {
		log.Fatalf("Failed to load golden cases: %v", err)
	}
	if err := evaluation.ValidateGoldenCases(cases); err != nil {
		log.Fatalf("Invalid golden cases: %v", err)
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatalf("Failed to initialize Typesense client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	runner := evaluation.NewRunner(search.NewKnowledgeAdapter(tsClient))
	summary, err := runner.Run(ctx, cases)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	log.Printf("Evaluated %d cases (%d with hits)", summary.TotalCases, summary.CasesWithHits)
	log.Printf("Recall@10: %.3f  MRR@10: %.3f  Avg latency: %s", summary.AvgRecallAt10, summary.AvgMRRAt10, summary.AvgLatency)
	for modality, ms := range summary.ByModality {
		log.Printf("  %s: %d cases, Recall@10 %.3f, MRR@10 %.3f", modality, ms.Count, ms.AvgRecallAt10, ms.AvgMRRAt10)
	}
}
