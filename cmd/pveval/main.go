// pveval scores the PII detectors against a labeled dataset and prints
// span-level precision, recall and F1 per entity type.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/eval"
	"github.com/promptveil/promptveil/internal/logger"
	"github.com/promptveil/promptveil/internal/pii"
)

func main() {
	var (
		inputFile  = flag.String("input", "", "Input dataset file (CSV, Parquet, or NDJSON)")
		detectors  = flag.String("detectors", "regex", "Comma-separated detector names")
		batchSize  = flag.Int("batch-size", 1000, "Batch size for reading the dataset")
		logLevel   = flag.String("log-level", "info", "Log level")
		jsonOutput = flag.Bool("json", false, "Print the result as JSON")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s --input dataset.csv [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input labeled.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input labeled.parquet --detectors regex,enhanced --json\n", os.Args[0])
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	built, err := pii.Build(splitList(*detectors))
	if err != nil {
		log.Fatal("Failed to configure detectors", zap.Error(err))
	}

	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		log.Fatal("Input file does not exist", zap.String("file", *inputFile))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling evaluation")
		cancel()
	}()

	config := eval.DefaultConfig()
	config.BatchSize = *batchSize

	runner := eval.NewRunner(built, config, log.Logger)
	result, err := runner.ProcessFile(ctx, *inputFile)
	if err != nil {
		log.Fatal("Evaluation failed", zap.Error(err))
	}

	if *jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatal("Failed to encode result", zap.Error(err))
		}
		fmt.Println(string(out))
		return
	}

	printResult(result)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printResult(result *eval.Result) {
	fmt.Printf("\n=== PromptVeil Detector Evaluation ===\n")
	fmt.Printf("Samples:   %d (%d skipped)\n", result.TotalSamples, result.SkippedSamples)
	fmt.Printf("Duration:  %v\n\n", result.Duration)

	types := make([]string, 0, len(result.PerType))
	for t := range result.PerType {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Printf("%-16s %8s %8s %8s %6s %6s %6s\n", "ENTITY", "TP", "FP", "FN", "P", "R", "F1")
	for _, t := range types {
		m := result.PerType[t]
		fmt.Printf("%-16s %8d %8d %8d %6.3f %6.3f %6.3f\n",
			t, m.TruePositives, m.FalsePositives, m.FalseNegatives,
			m.Precision(), m.Recall(), m.F1())
	}

	o := &result.Overall
	fmt.Printf("%-16s %8d %8d %8d %6.3f %6.3f %6.3f\n",
		"OVERALL", o.TruePositives, o.FalsePositives, o.FalseNegatives,
		o.Precision(), o.Recall(), o.F1())

	if len(result.Errors) > 0 {
		fmt.Printf("\n%d records had invalid labels (first: %s)\n", len(result.Errors), result.Errors[0])
	}
}
