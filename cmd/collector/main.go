package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"optionpulse/internal/di"
	"optionpulse/internal/domain/models"
	mid "optionpulse/internal/middleware"
	"optionpulse/internal/repository"
	"optionpulse/internal/usecase"
	"optionpulse/pkg/config"
	applogger "optionpulse/pkg/logger"
)

// Headless collection loop without the HTTP surface. Useful on boxes that
// only gather data.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbol := flag.String("symbol", "", "index symbol, overrides config")
	interval := flag.Duration("interval", 0, "fetch interval, overrides config")
	once := flag.Bool("once", false, "run a single cycle and print the result")
	maxSnapshots := flag.Int("max-snapshots", 0, "stop after this many successful cycles")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *symbol != "" {
		cfg.Collector.Symbol = strings.ToUpper(*symbol)
	}
	if *interval > 0 {
		cfg.Collector.Interval = *interval
	}
	if *maxSnapshots > 0 {
		cfg.Collector.MaxSnapshots = *maxSnapshots
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	m := di.ProvideMetrics()
	source := di.ProvideChainSource(cfg, logger)
	pred := di.ProvidePredictor(cfg, logger)
	if !pred.Loaded() {
		logger.Error("model bundle missing or inconsistent", applogger.String("dir", cfg.Model.Dir))
		os.Exit(1)
	}
	pipeline := di.ProvidePipeline(source, pred, m)

	store, err := di.ProvideStore(cfg, logger)
	if err != nil {
		logger.Error("store init failed", applogger.Error(err))
		os.Exit(1)
	}
	storePipe := di.ProvideStorePipeline(store, m, cfg)

	if *once {
		runOnce(cfg, pipeline, storePipe)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buffer := repository.NewRingBuffer(cfg.Collector.BufferSize)
	collector := di.ProvideCollector(cfg, pipeline, buffer, storePipe, nil, nil, m, logger)
	if err := collector.Start(ctx); err != nil {
		logger.Error("collector start failed", applogger.Error(err))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := collector.Shutdown(shutdownCtx); err != nil {
		logger.Warn("collector stop error", applogger.Error(err))
	}
}

func runOnce(cfg *config.Config, pipeline *usecase.Pipeline, storePipe *mid.StorePipeline) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, err := pipeline.FetchAndPredict(ctx, cfg.Collector.Symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "predict failed: %v\n", err)
		os.Exit(1)
	}

	rec := &models.FeatureRecord{
		Meta:     models.SnapshotMeta{Symbol: r.Symbol, Timestamp: r.Timestamp, Spot: r.Spot},
		Features: r.Features,
	}
	if err := storePipe.Append(ctx, rec); err != nil {
		fmt.Fprintf(os.Stderr, "store append failed: %v\n", err)
	}
	if err := storePipe.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "store close failed: %v\n", err)
	}

	out, _ := json.MarshalIndent(r, "", "  ")
	fmt.Println(string(out))
}
