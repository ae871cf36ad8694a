package eval

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/pii"
)

// Runner evaluates a set of detectors against labeled datasets.
type Runner struct {
	detectors []pii.Detector
	config    *Config
	logger    *zap.Logger
}

// NewRunner creates an evaluation runner. A nil config uses DefaultConfig.
func NewRunner(detectors []pii.Detector, config *Config, logger *zap.Logger) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Runner{
		detectors: detectors,
		config:    config,
		logger:    logger,
	}
}

// ProcessFile evaluates one dataset file (CSV, Parquet, or NDJSON).
func (r *Runner) ProcessFile(ctx context.Context, filePath string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	format := DetectFileFormat(filePath)
	r.logger.Info("Starting evaluation",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", r.config.BatchSize))

	start := time.Now()
	result := &Result{PerType: make(map[string]*Metrics)}

	var err error
	switch format {
	case FormatCSV:
		err = r.processCSV(ctx, filePath, result)
	case FormatParquet:
		err = r.processParquet(ctx, filePath, result)
	case FormatJSON:
		err = r.processJSON(ctx, filePath, result)
	default:
		err = fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	for _, m := range result.PerType {
		result.Overall.add(m)
	}

	r.logger.Info("Evaluation completed",
		zap.Int64("total_samples", result.TotalSamples),
		zap.Int64("skipped_samples", result.SkippedSamples),
		zap.Float64("precision", result.Overall.Precision()),
		zap.Float64("recall", result.Overall.Recall()),
		zap.Float64("f1", result.Overall.F1()),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (r *Runner) processCSV(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2 // text, entities

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	r.logger.Debug("CSV header detected", zap.Strings("columns", header))

	return r.processBatches(ctx, func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < r.config.BatchSize {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				r.logger.Warn("Failed to read CSV record", zap.Error(err))
				result.SkippedSamples++
				continue
			}
			if len(row) != 2 {
				result.SkippedSamples++
				continue
			}
			batch = append(batch, &Record{
				Text:     row[0],
				Entities: strings.TrimSpace(row[1]),
			})
		}
		return batch, nil
	}, result)
}

func (r *Runner) processParquet(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	return r.processBatches(ctx, func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < r.config.BatchSize {
			var record Record
			err := reader.Read(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				r.logger.Warn("Failed to read Parquet record", zap.Error(err))
				result.SkippedSamples++
				continue
			}
			batch = append(batch, &record)
		}
		return batch, nil
	}, result)
}

func (r *Runner) processJSON(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	return r.processBatches(ctx, func() ([]*Record, error) {
		var batch []*Record
		for len(batch) < r.config.BatchSize {
			var record Record
			err := decoder.Decode(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				r.logger.Warn("Failed to read JSON record", zap.Error(err))
				result.SkippedSamples++
				continue
			}
			batch = append(batch, &record)
		}
		return batch, nil
	}, result)
}

func (r *Runner) processBatches(ctx context.Context, readBatch func() ([]*Record, error), result *Result) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, record := range batch {
			expected, err := parseSpans(record)
			if err != nil {
				if r.config.ValidateData {
					result.SkippedSamples++
					result.Errors = append(result.Errors, err.Error())
					continue
				}
				expected = nil
			}
			r.scoreSample(record.Text, expected, result)
			result.TotalSamples++

			if r.config.ProgressReport > 0 && result.TotalSamples%int64(r.config.ProgressReport) == 0 {
				r.logger.Info("Evaluation progress",
					zap.Int64("samples", result.TotalSamples),
					zap.Int64("skipped", result.SkippedSamples))
			}
		}
	}
	return nil
}

// scoreSample runs detection over one text and tallies exact span matches.
// A prediction counts as a true positive only when entity type, start and
// end all agree with an expected span.
func (r *Runner) scoreSample(text string, expected []Span, result *Result) {
	predicted := pii.DetectAll(r.detectors, text)

	matched := make([]bool, len(expected))
	for _, m := range predicted {
		metrics := result.metricsFor(m.EntityType)
		hit := false
		for i, e := range expected {
			if matched[i] {
				continue
			}
			if e.EntityType == m.EntityType && e.Start == m.Start && e.End == m.End {
				matched[i] = true
				hit = true
				break
			}
		}
		if hit {
			metrics.TruePositives++
		} else {
			metrics.FalsePositives++
		}
	}

	for i, e := range expected {
		if !matched[i] {
			result.metricsFor(e.EntityType).FalseNegatives++
		}
	}
}

func (res *Result) metricsFor(entityType string) *Metrics {
	m, ok := res.PerType[entityType]
	if !ok {
		m = &Metrics{}
		res.PerType[entityType] = m
	}
	return m
}

// parseSpans decodes and validates the expected spans of one record.
func parseSpans(record *Record) ([]Span, error) {
	if record.Entities == "" || record.Entities == "[]" {
		return nil, nil
	}
	var spans []Span
	if err := json.Unmarshal([]byte(record.Entities), &spans); err != nil {
		return nil, fmt.Errorf("invalid entities column: %w", err)
	}
	for _, s := range spans {
		if s.EntityType == "" || s.Start < 0 || s.End > len(record.Text) || s.Start >= s.End {
			return nil, fmt.Errorf("invalid span %s [%d,%d) for text of length %d",
				s.EntityType, s.Start, s.End, len(record.Text))
		}
	}
	return spans, nil
}
