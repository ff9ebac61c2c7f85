// Kestrel - Card fraud scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Command train generates a synthetic labeled dataset, fits the scoring
// model, prints the evaluation report, and writes the artifact set the
// server loads at startup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/synth"
)

func main() {
	var (
		n            = flag.Int("n", synth.DefaultN, "number of records to generate")
		fraudRate    = flag.Float64("fraud-rate", synth.DefaultFraudRate, "fraction of fraud records (0, 1)")
		seed         = flag.Uint64("seed", synth.DefaultSeed, "random seed for generation and splitting")
		out          = flag.String("out", "./artifacts", "output directory for the artifact set")
		trees        = flag.Int("trees", model.DefaultForestConfig().Trees, "number of trees in the forest")
		testFraction = flag.Float64("test-fraction", model.DefaultTrainConfig().TestFraction, "held-out test fraction")
		dbPath       = flag.String("db", "", "sqlite path to record the training run (empty = skip)")
		debug        = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug || os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	start := time.Now()

	slog.Info("generating dataset",
		"n", *n,
		"fraud_rate", *fraudRate,
		"seed", *seed,
	)

	records, err := synth.Generate(synth.Config{
		N:         *n,
		FraudRate: *fraudRate,
		Seed:      *seed,
	})
	if err != nil {
		slog.Error("generation failed", "error", err)
		os.Exit(1)
	}

	trainCfg := model.DefaultTrainConfig()
	trainCfg.Seed = *seed
	trainCfg.TestFraction = *testFraction
	trainCfg.Forest.Trees = *trees

	slog.Info("training model",
		"records", len(records),
		"trees", trainCfg.Forest.Trees,
		"max_depth", trainCfg.Forest.MaxDepth,
		"test_fraction", trainCfg.TestFraction,
	)

	result, err := model.Train(records, trainCfg)
	if err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}

	fmt.Println(result.Evaluation.Report())

	if err := result.Artifacts.Save(*out); err != nil {
		slog.Error("failed to save artifacts", "dir", *out, "error", err)
		os.Exit(1)
	}
	slog.Info("artifacts saved",
		"dir", *out,
		"train_rows", result.TrainRows,
		"test_rows", result.TestRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if *dbPath != "" {
		if err := recordRun(*dbPath, *n, *fraudRate, *seed, result); err != nil {
			slog.Error("failed to record training run", "error", err)
			os.Exit(1)
		}
		slog.Info("training run recorded", "db", *dbPath)
	}
}

// recordRun stores the run parameters and metrics in the server database so
// GET /model can surface them.
func recordRun(dbPath string, n int, fraudRate float64, seed uint64, result *model.TrainResult) error {
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: dbPath,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	metrics, err := json.Marshal(result.Evaluation)
	if err != nil {
		return err
	}

	run := &domain.TrainingRun{
		ID:        uuid.New().String(),
		N:         n,
		FraudRate: fraudRate,
		Seed:      seed,
		Metrics:   metrics,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return repo.SaveTrainingRun(ctx, run)
}
