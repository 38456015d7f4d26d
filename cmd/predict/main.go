package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"optionpulse/internal/di"
	"optionpulse/pkg/config"
)

// One-shot prediction for a symbol, printed as JSON. Exits non-zero when the
// pipeline fails, including a missing model bundle.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	symbol := "NIFTY"
	if flag.NArg() > 0 {
		symbol = strings.ToUpper(flag.Arg(0))
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	pred := di.ProvidePredictor(cfg, logger)
	if !pred.Loaded() {
		fmt.Fprintf(os.Stderr, "model bundle missing or inconsistent: %s\n", cfg.Model.Dir)
		os.Exit(1)
	}
	pipeline := di.ProvidePipeline(di.ProvideChainSource(cfg, logger), pred, di.ProvideMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, err := pipeline.FetchAndPredict(ctx, symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "predict failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(r, "", "  ")
	fmt.Println(string(out))
}
