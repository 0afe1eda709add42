package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"placeforge/internal/config"
	"placeforge/internal/modelqueue"
	"placeforge/internal/pipeline"
	"placeforge/internal/registry"
	"placeforge/internal/run"
	"placeforge/internal/services"
	"placeforge/internal/services/capture"
	"placeforge/internal/services/imagegen"
	"placeforge/internal/services/inference"
	"placeforge/internal/services/meshgen"
	"placeforge/internal/services/objectstore"
	"placeforge/internal/services/places"
)

func newPipeline(cfg *config.Config, store *registry.Store, ctx *commandContext, mode run.Mode) (*pipeline.Pipeline, error) {
	placesClient := places.NewClient(places.Config{
		APIKey:         cfg.Places.APIKey,
		BaseURL:        cfg.Places.BaseURL,
		TimeoutSeconds: cfg.Places.TimeoutSeconds,
	})
	surface := capture.NewSurface(capture.Config{
		BaseURL:      cfg.Capture.BaseURL,
		Width:        cfg.Capture.Width,
		Height:       cfg.Capture.Height,
		ReadyTimeout: time.Duration(cfg.Capture.ReadinessTimeout) * time.Second,
		PollInterval: time.Duration(cfg.Capture.PollIntervalMS) * time.Millisecond,
	})
	inferencer := inference.NewClient(inference.Config{
		APIKey:         cfg.Inference.APIKey,
		BaseURL:        cfg.Inference.BaseURL,
		Model:          cfg.Inference.Model,
		TimeoutSeconds: cfg.Inference.TimeoutSeconds,
	})
	synthesizer := imagegen.NewClient(imagegen.Config{
		APIKey:         cfg.ImageGen.APIKey,
		BaseURL:        cfg.ImageGen.BaseURL,
		Model:          cfg.ImageGen.Model,
		TimeoutSeconds: cfg.ImageGen.TimeoutSeconds,
	})

	return pipeline.New(pipeline.Options{
		Store:       store,
		Resolver:    placesClient,
		Details:     placesClient,
		Surface:     surface,
		Inferencer:  inferencer,
		Synthesizer: synthesizer,
		OutputDir:   cfg.Paths.OutputDir,
		Mode:        mode,
		ItemDelay:   time.Duration(cfg.Workflow.ItemDelayMS) * time.Millisecond,
		Logger:      ctx.logger(),
	})
}

// newOrchestratorWithWait builds the model orchestrator; a non-zero maxWait
// overrides the configured polling budget.
func newOrchestratorWithWait(cfg *config.Config, store *registry.Store, ctx *commandContext, mode run.Mode, maxWait time.Duration) (*modelqueue.Orchestrator, error) {
	uploader := objectstore.NewClient(objectstore.Config{
		APIKey:         cfg.ObjectStore.APIKey,
		BaseURL:        cfg.ObjectStore.BaseURL,
		Bucket:         cfg.ObjectStore.Bucket,
		TimeoutSeconds: cfg.ObjectStore.TimeoutSeconds,
	})
	generator := meshgen.NewClient(meshgen.Config{
		APIKey:         cfg.MeshGen.APIKey,
		BaseURL:        cfg.MeshGen.BaseURL,
		TimeoutSeconds: cfg.MeshGen.TimeoutSeconds,
	})

	if maxWait == 0 {
		maxWait = time.Duration(cfg.MeshGen.MaxWaitMinutes) * time.Minute
	}

	return modelqueue.New(modelqueue.Options{
		Store:        store,
		Uploader:     uploader,
		Generator:    generator,
		ModelsDir:    cfg.Paths.ModelsDir,
		Mode:         mode,
		Logger:       ctx.logger(),
		UploadDelay:  time.Duration(cfg.MeshGen.UploadDelayMS) * time.Millisecond,
		FallbackPoll: time.Duration(cfg.MeshGen.FallbackPollSeconds) * time.Second,
		MinPoll:      time.Duration(cfg.MeshGen.MinPollSeconds) * time.Second,
		MaxPoll:      time.Duration(cfg.MeshGen.MaxPollSeconds) * time.Second,
		MaxWait:      maxWait,
	})
}

// newRunContext annotates the context with a fresh correlation id and
// returns both.
func newRunContext(parent context.Context) (context.Context, string) {
	runID := uuid.NewString()
	return services.WithRequestID(parent, runID), runID
}

// finishRun persists the summary document, records the run in history, and
// prints the outcome table. History failures are reported but never mask a
// completed run.
func finishRun(cmdCtx *commandContext, cfg *config.Config, collector *run.Collector, kind string, out io.Writer) error {
	summary := collector.Summary()

	summaryPath := filepath.Join(cfg.Paths.DataDir, kind+"_summary.json")
	if err := run.WriteSummary(summaryPath, summary); err != nil {
		return err
	}

	if history, err := cmdCtx.openHistory(); err == nil {
		defer history.Close()
		if err := history.Record(context.Background(), summary, summaryPath); err != nil {
			fmt.Fprintf(out, "warning: record run history: %v\n", err)
		}
	} else {
		fmt.Fprintf(out, "warning: open run history: %v\n", err)
	}

	printSummary(out, summary, summaryPath)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", summary.Failed, summary.Total)
	}
	return nil
}

func printSummary(out io.Writer, summary run.Summary, summaryPath string) {
	rows := make([][]string, 0, len(summary.Results))
	for _, result := range summary.Results {
		detail := result.ArtifactRef
		if result.Status == run.StatusFailed {
			detail = result.Err
		}
		rows = append(rows, []string{
			result.SubjectID,
			string(result.Status),
			formatDuration(result.DurationSeconds),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Item", "Status", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "%d total: %d succeeded, %d failed, %d skipped\n",
		summary.Total, summary.Successful, summary.Failed, summary.Skipped)
	fmt.Fprintf(out, "Summary written to %s\n", summaryPath)
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return time.Duration(seconds * float64(time.Second)).Round(100 * time.Millisecond).String()
}

// readNames loads one place name per line, ignoring blanks and comments.
func readNames(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open name list: %w", err)
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read name list: %w", err)
	}
	return names, nil
}
