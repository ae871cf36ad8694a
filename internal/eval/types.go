// Package eval scores detectors against labeled datasets. A sample is a
// text with its expected entity spans; the runner compares detector output
// span by span and reports precision, recall and F1 per entity type.
package eval

import (
	"strings"
	"time"
)

// Record is one row of an input dataset. Entities holds the expected spans
// as a JSON array so the same flat schema works for CSV, Parquet and NDJSON.
type Record struct {
	Text     string `csv:"text" parquet:"text" json:"text"`
	Entities string `csv:"entities" parquet:"entities" json:"entities"`
}

// Span is one expected detection. Offsets are byte offsets into Text,
// half-open.
type Span struct {
	EntityType string `json:"entity_type"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// Metrics accumulates span-level counts for one entity type.
type Metrics struct {
	TruePositives  int64 `json:"true_positives"`
	FalsePositives int64 `json:"false_positives"`
	FalseNegatives int64 `json:"false_negatives"`
}

// Precision returns TP / (TP + FP), or 0 when nothing was predicted.
func (m *Metrics) Precision() float64 {
	denom := m.TruePositives + m.FalsePositives
	if denom == 0 {
		return 0
	}
	return float64(m.TruePositives) / float64(denom)
}

// Recall returns TP / (TP + FN), or 0 when nothing was expected.
func (m *Metrics) Recall() float64 {
	denom := m.TruePositives + m.FalseNegatives
	if denom == 0 {
		return 0
	}
	return float64(m.TruePositives) / float64(denom)
}

// F1 returns the harmonic mean of precision and recall.
func (m *Metrics) F1() float64 {
	p, r := m.Precision(), m.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (m *Metrics) add(other *Metrics) {
	m.TruePositives += other.TruePositives
	m.FalsePositives += other.FalsePositives
	m.FalseNegatives += other.FalseNegatives
}

// Result is the outcome of evaluating one dataset.
type Result struct {
	TotalSamples   int64               `json:"total_samples"`
	SkippedSamples int64               `json:"skipped_samples"`
	PerType        map[string]*Metrics `json:"per_type"`
	Overall        Metrics             `json:"overall"`
	Duration       time.Duration       `json:"duration"`
	Errors         []string            `json:"errors,omitempty"`
}

// Config contains evaluation run configuration.
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	ValidateData   bool `yaml:"validate_data" mapstructure:"validate_data"`
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"`
}

// DefaultConfig returns a configuration suitable for most datasets.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      1000,
		ValidateData:   true,
		ProgressReport: 5000,
	}
}

// FileFormat represents supported dataset formats.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects the dataset format from the file extension.
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return FormatCSV
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json"), strings.HasSuffix(filename, ".jsonl"), strings.HasSuffix(filename, ".ndjson"):
		return FormatJSON
	default:
		return FormatCSV
	}
}
