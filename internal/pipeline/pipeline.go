package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"placeforge/internal/logging"
	"placeforge/internal/registry"
	"placeforge/internal/retry"
	"placeforge/internal/run"
	"placeforge/internal/services"
	"placeforge/internal/services/capture"
	"placeforge/internal/services/inference"
	"placeforge/internal/services/places"
	"placeforge/internal/slug"
)

// Resolver maps a free-text place query to a canonical location.
type Resolver interface {
	Resolve(ctx context.Context, query string) (places.Location, error)
}

// DetailLookup fetches the display name and type tags for a canonical place.
type DetailLookup interface {
	Details(ctx context.Context, placeRef string) (places.Details, error)
}

// Surface produces exactly one rendered view per call.
type Surface interface {
	Capture(ctx context.Context, target capture.Target) ([]byte, error)
}

// Inferencer classifies a captured view into registry metadata.
type Inferencer interface {
	Infer(ctx context.Context, view []byte, placeName string, tags []string) (inference.Metadata, error)
}

// Synthesizer produces the sprite image from the captured view.
type Synthesizer interface {
	Synthesize(ctx context.Context, view []byte, prompt string) ([]byte, error)
}

// Options wires a Pipeline.
type Options struct {
	Store       *registry.Store
	Resolver    Resolver
	Details     DetailLookup
	Surface     Surface
	Inferencer  Inferencer
	Synthesizer Synthesizer
	OutputDir   string
	Mode        run.Mode
	ItemDelay   time.Duration
	Logger      *slog.Logger

	// Sleep overrides timed pauses; tests inject a recorder.
	Sleep func(context.Context, time.Duration) error
	// InferRetry and SynthRetry override the retry policies around the two
	// generative calls. Zero values take the defaults (3 attempts at 1s and
	// 2s initial backoff respectively).
	InferRetry retry.Policy
	SynthRetry retry.Policy
}

// Pipeline drives each item through the sequential stage machine:
// resolve, details, derive id, existence check, capture, infer, synthesize,
// save, register. Items are processed strictly one at a time; one item's
// failure never halts the batch.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a pipeline, applying retry and pacing defaults.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Store == nil:
		return nil, fmt.Errorf("pipeline requires a registry store")
	case opts.Resolver == nil || opts.Details == nil:
		return nil, fmt.Errorf("pipeline requires resolver and detail lookup")
	case opts.Surface == nil || opts.Inferencer == nil || opts.Synthesizer == nil:
		return nil, fmt.Errorf("pipeline requires surface, inferencer, and synthesizer")
	case opts.OutputDir == "":
		return nil, fmt.Errorf("pipeline requires an output directory")
	}
	if opts.Mode == "" {
		opts.Mode = run.CreateMissingOnly
	}
	if opts.InferRetry.MaxAttempts == 0 {
		opts.InferRetry = retry.Policy{MaxAttempts: 3, InitialDelay: time.Second}
	}
	if opts.SynthRetry.MaxAttempts == 0 {
		opts.SynthRetry = retry.Policy{MaxAttempts: 3, InitialDelay: 2 * time.Second}
	}
	if opts.Sleep == nil {
		opts.Sleep = defaultSleep
	}
	return &Pipeline{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "pipeline"),
	}, nil
}

// Run processes the batch in order, appending one result per item to the
// collector. Only run-fatal errors (registry corruption, lost persistence)
// abort the batch.
func (p *Pipeline) Run(ctx context.Context, queries []string, collector *run.Collector) error {
	for i, query := range queries {
		result, err := p.processItem(ctx, query)
		if err != nil {
			return err
		}
		collector.Add(result)

		if i < len(queries)-1 && p.opts.ItemDelay > 0 {
			if err := p.opts.Sleep(ctx, p.opts.ItemDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// processItem returns the item's result plus a non-nil error only when the
// failure is run-fatal.
func (p *Pipeline) processItem(ctx context.Context, query string) (run.Result, error) {
	started := time.Now()

	location, err := p.opts.Resolver.Resolve(services.WithStage(ctx, "resolve"), query)
	if err != nil {
		return p.failed(ctx, query, err), nil
	}

	details, err := p.opts.Details.Details(services.WithStage(ctx, "details"), location.PlaceRef)
	if err != nil {
		return p.failed(ctx, query, err), nil
	}
	// A stable id cannot be derived without a display name; refusing to guess
	// one keeps ids deterministic across runs.
	if details.DisplayName == "" {
		return p.failed(ctx, query, services.Wrap(services.ErrValidation, "details", "", "no display name for "+query, nil)), nil
	}

	id := slug.Derive(details.DisplayName)
	if id == "" {
		return p.failed(ctx, query, services.Wrap(services.ErrValidation, "derive-id", "", fmt.Sprintf("name %q yields empty id", details.DisplayName), nil)), nil
	}

	ctx = services.WithItemID(ctx, id)
	logger := logging.WithContext(ctx, p.logger)

	// Placed after the two cheap lookups and before the three expensive
	// calls, so repeat runs cost nothing for finished items.
	if p.opts.Mode == run.CreateMissingOnly && p.opts.Store.Exists(id) {
		logger.Info("item already registered, skipping")
		return run.Skipped(id), nil
	}

	view, err := p.opts.Surface.Capture(services.WithStage(ctx, "capture"), capture.Target{
		Lat:  location.Lat,
		Lng:  location.Lng,
		Name: details.DisplayName,
	})
	if err != nil {
		return p.failed(ctx, id, err), nil
	}

	meta, err := retry.Do(services.WithStage(ctx, "infer"), p.opts.InferRetry, func(ctx context.Context) (inference.Metadata, error) {
		return p.opts.Inferencer.Infer(ctx, view, details.DisplayName, details.Tags)
	})
	if err != nil {
		return p.failed(ctx, id, err), nil
	}

	sprite, err := retry.Do(services.WithStage(ctx, "synthesize"), p.opts.SynthRetry, func(ctx context.Context) ([]byte, error) {
		return p.opts.Synthesizer.Synthesize(ctx, view, spritePrompt(details.DisplayName, meta))
	})
	if err != nil {
		return p.failed(ctx, id, err), nil
	}

	spritePath, err := p.save(id, sprite)
	if err != nil {
		return p.failed(ctx, id, err), nil
	}

	record := registry.Record{
		ID:               id,
		Name:             details.DisplayName,
		Category:         meta.Category,
		Footprint:        &meta.Footprint,
		Icon:             meta.Icon,
		SpriteRef:        spritePath,
		SupportsRotation: registry.Bool(true),
	}
	if err := p.opts.Store.Upsert(record); err != nil {
		if services.RunFatal(err) {
			return run.Result{}, err
		}
		return p.failed(ctx, id, err), nil
	}

	logger.Info("item processed",
		logging.String("category", string(meta.Category)),
		logging.String("sprite", spritePath),
		logging.Duration("elapsed", time.Since(started)))
	return run.Success(id, spritePath).WithDuration(time.Since(started)), nil
}

// save writes the sprite under the slug-derived filename. An existing file
// under create-missing mode is a conflict between distinct items that derive
// the same name; it is surfaced, never silently overwritten or renamed.
func (p *Pipeline) save(id string, sprite []byte) (string, error) {
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrRegistryIO, "save", "", "ensure output dir", err)
	}
	path := filepath.Join(p.opts.OutputDir, id+".png")
	if p.opts.Mode == run.CreateMissingOnly {
		if _, err := os.Stat(path); err == nil {
			return "", services.Wrap(services.ErrConflict, "save", "", path+" already exists", nil)
		}
	}
	if err := os.WriteFile(path, sprite, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "save", "", path, err)
	}
	return path, nil
}

func (p *Pipeline) failed(ctx context.Context, subject string, err error) run.Result {
	logging.WithContext(ctx, p.logger).Error("item failed", logging.Error(err))
	return run.Failed(subject, err)
}

func spritePrompt(name string, meta inference.Metadata) string {
	return fmt.Sprintf(
		"Redraw %s (%s) from this photo as a clean isometric game sprite on a transparent background, footprint %dx%d.",
		name, meta.Category, meta.Footprint.W, meta.Footprint.H,
	)
}

func defaultSleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
