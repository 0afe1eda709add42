package modelqueue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"placeforge/internal/logging"
	"placeforge/internal/registry"
	"placeforge/internal/run"
	"placeforge/internal/services"
	"placeforge/internal/services/meshgen"
)

// Uploader publishes a sprite to a location the mesh service can fetch.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Generator is the asynchronous image-to-3d service: submit returns a
// request id, status reports progress, download retrieves the finished
// asset.
type Generator interface {
	Submit(ctx context.Context, imageURL string) (string, error)
	Status(ctx context.Context, requestID string) (meshgen.JobStatus, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// JobHandle tracks one submitted request for the lifetime of the run.
// Handles are never persisted; a restarted run resubmits from scratch and
// relies on the registry to skip items that already have models.
type JobHandle struct {
	RequestID   string
	ItemID      string
	SubmittedAt time.Time
}

// Options wires an Orchestrator.
type Options struct {
	Store     *registry.Store
	Uploader  Uploader
	Generator Generator
	ModelsDir string
	Mode      run.Mode
	Logger    *slog.Logger

	// UploadDelay paces consecutive submissions.
	UploadDelay time.Duration
	// FallbackPoll is the sweep interval when no job reports a queue
	// position. MinPoll and MaxPoll clamp the position-derived interval.
	FallbackPoll time.Duration
	MinPoll      time.Duration
	MaxPoll      time.Duration
	// MaxWait bounds the whole polling phase; zero waits indefinitely.
	MaxWait time.Duration

	Sleep func(context.Context, time.Duration) error
	Now   func() time.Time
}

// Orchestrator runs the two-phase model generation pass: submit every
// eligible sprite, then poll the pending jobs until all settle or the
// wait budget runs out.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
}

// New constructs an orchestrator, applying pacing defaults.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Store == nil:
		return nil, fmt.Errorf("model queue requires a registry store")
	case opts.Uploader == nil || opts.Generator == nil:
		return nil, fmt.Errorf("model queue requires uploader and generator")
	case opts.ModelsDir == "":
		return nil, fmt.Errorf("model queue requires a models directory")
	}
	if opts.Mode == "" {
		opts.Mode = run.CreateMissingOnly
	}
	if opts.UploadDelay == 0 {
		opts.UploadDelay = time.Second
	}
	if opts.FallbackPoll == 0 {
		opts.FallbackPoll = 5 * time.Second
	}
	if opts.MinPoll == 0 {
		opts.MinPoll = 2 * time.Second
	}
	if opts.MaxPoll == 0 {
		opts.MaxPoll = 30 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = defaultSleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "modelqueue"),
	}, nil
}

// Run executes both phases. Only registry corruption aborts the run; every
// other failure lands as a per-item result in the collector.
func (o *Orchestrator) Run(ctx context.Context, only string, collector *run.Collector) error {
	pending, err := o.submitAll(ctx, only, collector)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		o.logger.Info("no jobs submitted, nothing to poll")
		return nil
	}
	return o.pollUntilSettled(ctx, pending, collector)
}

// submitAll walks the registry and starts one job per eligible item.
func (o *Orchestrator) submitAll(ctx context.Context, only string, collector *run.Collector) ([]JobHandle, error) {
	ids, err := o.opts.Store.Query(func(r registry.Record) bool {
		if only != "" && r.ID != only {
			return false
		}
		return r.HasSprite()
	})
	if err != nil {
		return nil, err
	}

	var pending []JobHandle
	for _, id := range ids {
		record, ok, err := o.opts.Store.Get(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if record.HasModel() && o.opts.Mode == run.CreateMissingOnly {
			collector.Add(run.Skipped(id))
			continue
		}

		if len(pending) > 0 && o.opts.UploadDelay > 0 {
			if err := o.opts.Sleep(ctx, o.opts.UploadDelay); err != nil {
				return nil, err
			}
		}

		handle, err := o.submitOne(ctx, record)
		if err != nil {
			collector.Add(run.Failed(id, err))
			logging.WithContext(services.WithItemID(ctx, id), o.logger).
				Error("submission failed", logging.Error(err))
			continue
		}
		pending = append(pending, handle)
		logging.WithContext(services.WithItemID(ctx, id), o.logger).
			Info("job submitted", logging.String("request_id", handle.RequestID))
	}
	return pending, nil
}

func (o *Orchestrator) submitOne(ctx context.Context, record registry.Record) (JobHandle, error) {
	ctx = services.WithItemID(ctx, record.ID)

	sprite, err := os.ReadFile(record.SpriteRef)
	if err != nil {
		return JobHandle{}, services.Wrap(services.ErrValidation, "submit", "", "read sprite "+record.SpriteRef, err)
	}
	url, err := o.opts.Uploader.Upload(services.WithStage(ctx, "upload"), record.ID+".png", sprite)
	if err != nil {
		return JobHandle{}, err
	}
	requestID, err := o.opts.Generator.Submit(services.WithStage(ctx, "submit"), url)
	if err != nil {
		return JobHandle{}, err
	}
	return JobHandle{
		RequestID:   requestID,
		ItemID:      record.ID,
		SubmittedAt: o.opts.Now(),
	}, nil
}

// pollUntilSettled sweeps the pending set, querying each job exactly once
// per sweep, until every job settles or MaxWait elapses.
func (o *Orchestrator) pollUntilSettled(ctx context.Context, pending []JobHandle, collector *run.Collector) error {
	var deadline time.Time
	if o.opts.MaxWait > 0 {
		deadline = o.opts.Now().Add(o.opts.MaxWait)
	}

	for len(pending) > 0 {
		var positions []int
		remaining := pending[:0]

		for _, handle := range pending {
			settled, position, err := o.checkJob(ctx, handle, collector)
			if err != nil {
				return err
			}
			if settled {
				continue
			}
			if position != nil {
				positions = append(positions, *position)
			}
			remaining = append(remaining, handle)
		}
		pending = remaining
		if len(pending) == 0 {
			break
		}

		if !deadline.IsZero() && !o.opts.Now().Before(deadline) {
			for _, handle := range pending {
				err := services.Wrap(services.ErrExternalJob, "poll", "",
					fmt.Sprintf("request %s still unfinished after %s", handle.RequestID, o.opts.MaxWait), nil)
				collector.Add(run.Failed(handle.ItemID, err))
			}
			o.logger.Warn("wait budget exhausted",
				logging.Int("abandoned", len(pending)),
				logging.Duration("max_wait", o.opts.MaxWait))
			return nil
		}

		delay := NextDelay(positions, o.opts.FallbackPoll, o.opts.MinPoll, o.opts.MaxPoll)
		o.logger.Debug("sweep complete",
			logging.Int("pending", len(pending)),
			logging.Duration("next_poll", delay))
		if err := o.opts.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// checkJob polls one handle. It reports whether the job settled, and the
// queue position hint when the service provided one. The returned error is
// run-fatal only.
func (o *Orchestrator) checkJob(ctx context.Context, handle JobHandle, collector *run.Collector) (bool, *int, error) {
	ctx = services.WithItemID(ctx, handle.ItemID)
	logger := logging.WithContext(ctx, o.logger)

	status, err := o.opts.Generator.Status(services.WithStage(ctx, "status"), handle.RequestID)
	if err != nil {
		// A flaky status read leaves the job pending; the wait budget
		// bounds how long a persistently failing poll can drag on.
		logger.Warn("status check failed", logging.Error(err))
		return false, nil, nil
	}

	switch status.State {
	case meshgen.StateSucceeded:
		if err := o.finishJob(ctx, handle, status); err != nil {
			if services.RunFatal(err) {
				return false, nil, err
			}
			collector.Add(run.Failed(handle.ItemID, err))
			return true, nil, nil
		}
		elapsed := o.opts.Now().Sub(handle.SubmittedAt)
		collector.Add(run.Success(handle.ItemID, o.modelPath(handle, status)).WithDuration(elapsed))
		logger.Info("model ready", logging.Duration("elapsed", elapsed))
		return true, nil, nil
	case meshgen.StateFailed:
		err := services.Wrap(services.ErrExternalJob, "poll", "", status.Message, nil)
		collector.Add(run.Failed(handle.ItemID, err))
		logger.Error("job failed", logging.String("reason", status.Message))
		return true, nil, nil
	default:
		return false, status.QueuePosition, nil
	}
}

// finishJob downloads the asset, writes it next to the other models, and
// records the model reference on the item.
func (o *Orchestrator) finishJob(ctx context.Context, handle JobHandle, status meshgen.JobStatus) error {
	data, err := o.opts.Generator.Download(services.WithStage(ctx, "download"), status.ResultURL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(o.opts.ModelsDir, 0o755); err != nil {
		return services.Wrap(services.ErrRegistryIO, "download", "", "ensure models dir", err)
	}
	path := o.modelPath(handle, status)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "download", "", path, err)
	}
	return o.opts.Store.Upsert(registry.Record{ID: handle.ItemID, ModelRef: path})
}

func (o *Orchestrator) modelPath(handle JobHandle, status meshgen.JobStatus) string {
	ext := status.ResultExt
	if ext == "" {
		ext = "glb"
	}
	return filepath.Join(o.opts.ModelsDir, handle.ItemID+"."+ext)
}

// NextDelay derives the sweep interval from the queue position hints: the
// smallest position, at one second per slot, clamped to [min, max]. With no
// hints the fallback interval applies.
func NextDelay(positions []int, fallback, min, max time.Duration) time.Duration {
	if len(positions) == 0 {
		return fallback
	}
	lowest := positions[0]
	for _, p := range positions[1:] {
		if p < lowest {
			lowest = p
		}
	}
	delay := time.Duration(lowest) * time.Second
	if delay < min {
		return min
	}
	if delay > max {
		return max
	}
	return delay
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
