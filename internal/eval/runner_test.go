package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/pii"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	detectors, err := pii.Build([]string{"regex"})
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(detectors, nil, zap.NewNop())
}

func writeDataset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessFileCSV(t *testing.T) {
	// One exact hit, one miss (no email present), one false positive
	// (detector finds the email but the label claims nothing).
	csv := `text,entities
mail a@b.co now,"[{""entity_type"":""EMAIL"",""start"":5,""end"":11}]"
nothing here,"[{""entity_type"":""EMAIL"",""start"":0,""end"":7}]"
ping c@d.co,[]
`
	path := writeDataset(t, "data.csv", csv)

	result, err := newTestRunner(t).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if result.TotalSamples != 3 {
		t.Errorf("total samples = %d, want 3", result.TotalSamples)
	}

	m := result.PerType["EMAIL"]
	if m == nil {
		t.Fatal("no EMAIL metrics")
	}
	if m.TruePositives != 1 || m.FalsePositives != 1 || m.FalseNegatives != 1 {
		t.Errorf("EMAIL metrics = %+v, want TP=1 FP=1 FN=1", m)
	}
	if got := m.Precision(); got != 0.5 {
		t.Errorf("precision = %v, want 0.5", got)
	}
	if got := m.Recall(); got != 0.5 {
		t.Errorf("recall = %v, want 0.5", got)
	}
}

func TestProcessFileNDJSON(t *testing.T) {
	ndjson := `{"text":"mail a@b.co now","entities":"[{\"entity_type\":\"EMAIL\",\"start\":5,\"end\":11}]"}
{"text":"clean text","entities":"[]"}
`
	path := writeDataset(t, "data.json", ndjson)

	result, err := newTestRunner(t).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if result.TotalSamples != 2 {
		t.Errorf("total samples = %d, want 2", result.TotalSamples)
	}
	if m := result.PerType["EMAIL"]; m == nil || m.TruePositives != 1 || m.FalsePositives != 0 {
		t.Errorf("EMAIL metrics = %+v", m)
	}
}

func TestProcessFileSkipsInvalidSpans(t *testing.T) {
	csv := `text,entities
short,"[{""entity_type"":""EMAIL"",""start"":0,""end"":99}]"
`
	path := writeDataset(t, "bad.csv", csv)

	result, err := newTestRunner(t).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if result.SkippedSamples != 1 {
		t.Errorf("skipped = %d, want 1", result.SkippedSamples)
	}
	if result.TotalSamples != 0 {
		t.Errorf("total = %d, want 0", result.TotalSamples)
	}
	if len(result.Errors) == 0 {
		t.Error("expected a recorded validation error")
	}
}

func TestMetricsMath(t *testing.T) {
	m := &Metrics{TruePositives: 6, FalsePositives: 2, FalseNegatives: 2}
	if got := m.Precision(); got != 0.75 {
		t.Errorf("precision = %v", got)
	}
	if got := m.Recall(); got != 0.75 {
		t.Errorf("recall = %v", got)
	}
	if got := m.F1(); got != 0.75 {
		t.Errorf("f1 = %v", got)
	}

	empty := &Metrics{}
	if empty.Precision() != 0 || empty.Recall() != 0 || empty.F1() != 0 {
		t.Error("empty metrics must be all zero, not NaN")
	}
}

func TestDetectFileFormat(t *testing.T) {
	cases := map[string]FileFormat{
		"data.csv":     FormatCSV,
		"data.parquet": FormatParquet,
		"data.json":    FormatJSON,
		"data.jsonl":   FormatJSON,
		"data.ndjson":  FormatJSON,
		"data.txt":     FormatCSV,
	}
	for name, want := range cases {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("DetectFileFormat(%q) = %v, want %v", name, got, want)
		}
	}
}
