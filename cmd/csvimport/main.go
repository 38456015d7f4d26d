package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"optionpulse/internal/di"
	"optionpulse/internal/domain/models"
	mid "optionpulse/internal/middleware"
	"optionpulse/internal/service/nse"
	"optionpulse/internal/usecase"
	"optionpulse/pkg/config"
	applogger "optionpulse/pkg/logger"
)

// Imports an exchange CSV export, scores it and appends the feature vector
// to the configured store. Covers backfill from manually downloaded chains.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	file := flag.String("file", "", "option chain CSV export file or directory")
	symbol := flag.String("symbol", "NIFTY", "index symbol")
	spot := flag.Float64("spot", 0, "underlying spot at capture time, required")
	flag.Parse()

	if *file == "" || *spot <= 0 {
		fmt.Fprintln(os.Stderr, "usage: csvimport --file chain.csv --symbol NIFTY --spot 24500")
		os.Exit(2)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	m := di.ProvideMetrics()
	pred := di.ProvidePredictor(cfg, logger)
	if !pred.Loaded() {
		fmt.Fprintf(os.Stderr, "model bundle missing or inconsistent: %s\n", cfg.Model.Dir)
		os.Exit(1)
	}
	pipeline := di.ProvidePipeline(di.ProvideChainSource(cfg, logger), pred, m)
	store, err := di.ProvideStore(cfg, logger)
	if err != nil {
		logger.Error("store init failed", applogger.Error(err))
		os.Exit(1)
	}
	storePipe := di.ProvideStorePipeline(store, m, cfg)

	files, err := collectFiles(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	failed := 0
	for _, path := range files {
		if err := importOne(ctx, path, strings.ToUpper(*symbol), *spot, pipeline, storePipe); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
		}
	}
	if err := storePipe.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "store close failed: %v\n", err)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// collectFiles expands a path into the csv files to import; a directory
// imports every .csv inside it.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no csv files in %s", path)
	}
	return files, nil
}

func importOne(ctx context.Context, path, symbol string, spot float64, pipeline *usecase.Pipeline, storePipe *mid.StorePipeline) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	snap, err := nse.ParseCSV(f, symbol, spot, time.Now())
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	r, err := pipeline.PredictSnapshot(snap)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	rec := &models.FeatureRecord{
		Meta:     models.SnapshotMeta{Symbol: r.Symbol, Timestamp: r.Timestamp, Spot: r.Spot},
		Features: r.Features,
	}
	if err := storePipe.Append(ctx, rec); err != nil {
		fmt.Fprintf(os.Stderr, "store append failed: %v\n", err)
	}

	out, _ := json.MarshalIndent(r, "", "  ")
	fmt.Println(string(out))
	return nil
}
