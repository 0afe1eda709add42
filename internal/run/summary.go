package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Summary is the per-run report persisted as a single full overwrite. It is
// never merged with a prior run's summary.
type Summary struct {
	RunID      string   `json:"run_id"`
	Kind       string   `json:"kind"`
	Timestamp  string   `json:"timestamp"`
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Results    []Result `json:"results"`
}

// Collector accumulates results for a single run.
type Collector struct {
	runID   string
	kind    string
	results []Result
}

// NewCollector creates an empty collector for the given run.
func NewCollector(runID, kind string) *Collector {
	return &Collector{runID: runID, kind: kind}
}

// Add appends a result. Append-only: nothing is ever replaced or merged.
func (c *Collector) Add(result Result) {
	c.results = append(c.results, result)
}

// Results returns the accumulated results in arrival order.
func (c *Collector) Results() []Result {
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Summary computes the run report from the accumulated results.
func (c *Collector) Summary() Summary {
	summary := Summary{
		RunID:     c.runID,
		Kind:      c.kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Total:     len(c.results),
		Results:   c.Results(),
	}
	for _, result := range c.results {
		switch result.Status {
		case StatusSuccess:
			summary.Successful++
		case StatusFailed:
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		}
	}
	return summary
}

// WriteSummary persists the summary to path, replacing any previous content.
func WriteSummary(path string, summary Summary) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure summary dir: %w", err)
		}
	}
	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	encoded = append(encoded, '\n')
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}
