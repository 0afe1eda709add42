package modelqueue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"placeforge/internal/logging"
	"placeforge/internal/registry"
	"placeforge/internal/run"
	"placeforge/internal/services/meshgen"
)

type fakeUploader struct {
	uploads []string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, name string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, name)
	return "https://objects.test/" + name, nil
}

type fakeGenerator struct {
	// statuses scripts the successive poll answers per request id.
	statuses    map[string][]meshgen.JobStatus
	statusCalls map[string]int
	submitted   []string
	submitErr   error
}

func (f *fakeGenerator) Submit(_ context.Context, imageURL string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	id := fmt.Sprintf("req-%d", len(f.submitted)+1)
	f.submitted = append(f.submitted, imageURL)
	return id, nil
}

func (f *fakeGenerator) Status(_ context.Context, requestID string) (meshgen.JobStatus, error) {
	if f.statusCalls == nil {
		f.statusCalls = map[string]int{}
	}
	script := f.statuses[requestID]
	call := f.statusCalls[requestID]
	f.statusCalls[requestID]++
	if call >= len(script) {
		return script[len(script)-1], nil
	}
	return script[call], nil
}

func (f *fakeGenerator) Download(_ context.Context, url string) ([]byte, error) {
	return []byte("glb-for-" + url), nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func seedItem(t *testing.T, store *registry.Store, dir, id string, withModel bool) registry.Record {
	t.Helper()
	spritePath := filepath.Join(dir, id+".png")
	if err := os.WriteFile(spritePath, []byte("sprite-"+id), 0o644); err != nil {
		t.Fatal(err)
	}
	record := registry.Record{
		ID:        id,
		Name:      strings.ToUpper(id),
		Category:  registry.CategoryLandmark,
		Footprint: &registry.Footprint{W: 2, H: 2},
		Icon:      "\U0001F3DB",
		SpriteRef: spritePath,
	}
	if withModel {
		record.ModelRef = filepath.Join(dir, id+".glb")
	}
	if err := store.Upsert(record); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return record
}

func newTestOrchestrator(t *testing.T, gen *fakeGenerator, mode run.Mode, maxWait time.Duration) (*Orchestrator, *registry.Store, string, *[]time.Duration, *testClock) {
	t.Helper()
	dir := t.TempDir()
	store, err := registry.Open(filepath.Join(dir, "registry.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	var sleeps []time.Duration
	o, err := New(Options{
		Store:        store,
		Uploader:     &fakeUploader{},
		Generator:    gen,
		ModelsDir:    filepath.Join(dir, "models"),
		Mode:         mode,
		Logger:       logging.NewNop(),
		UploadDelay:  time.Second,
		FallbackPoll: 5 * time.Second,
		MinPoll:      2 * time.Second,
		MaxPoll:      30 * time.Second,
		MaxWait:      maxWait,
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			clock.advance(d)
			return nil
		},
		Now: clock.Now,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o, store, dir, &sleeps, clock
}

func TestNextDelay(t *testing.T) {
	fallback, min, max := 5*time.Second, 2*time.Second, 30*time.Second
	tests := []struct {
		name      string
		positions []int
		want      time.Duration
	}{
		{"lowest position wins", []int{3, 50}, 3 * time.Second},
		{"clamped to floor", []int{1}, 2 * time.Second},
		{"position zero clamps to floor", []int{0}, 2 * time.Second},
		{"clamped to ceiling", []int{45}, 30 * time.Second},
		{"no hints falls back", nil, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextDelay(tt.positions, fallback, min, max); got != tt.want {
				t.Fatalf("NextDelay(%v) = %v, want %v", tt.positions, got, tt.want)
			}
		})
	}
}

func TestRunSubmitsPollsAndFinishes(t *testing.T) {
	pos := 2
	gen := &fakeGenerator{statuses: map[string][]meshgen.JobStatus{
		"req-1": {
			{State: meshgen.StatePending, QueuePosition: &pos},
			{State: meshgen.StateSucceeded, ResultURL: "https://meshes.test/a", ResultExt: "glb"},
		},
		"req-2": {
			{State: meshgen.StateSucceeded, ResultURL: "https://meshes.test/b", ResultExt: "glb"},
		},
	}}
	o, store, dir, sleeps, _ := newTestOrchestrator(t, gen, run.CreateMissingOnly, 0)
	seedItem(t, store, dir, "alpha", false)
	seedItem(t, store, dir, "beta", false)

	collector := run.NewCollector("run-1", "models")
	if err := o.Run(context.Background(), "", collector); err != nil {
		t.Fatalf("run: %v", err)
	}

	summary := collector.Summary()
	if summary.Successful != 2 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	for _, id := range []string{"alpha", "beta"} {
		modelPath := filepath.Join(dir, "models", id+".glb")
		if _, err := os.Stat(modelPath); err != nil {
			t.Fatalf("model file for %s: %v", id, err)
		}
		record, _, err := store.Get(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if record.ModelRef != modelPath {
			t.Fatalf("%s model ref = %q, want %q", id, record.ModelRef, modelPath)
		}
		if !record.HasSprite() {
			t.Fatalf("%s lost its sprite ref in the model upsert", id)
		}
	}

	// One pacing pause between the two submissions, one poll pause derived
	// from the queue position hint.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("sleep[%d] = %v, want %v", i, (*sleeps)[i], d)
		}
	}
	// Each sweep queries every pending job exactly once.
	if gen.statusCalls["req-1"] != 2 || gen.statusCalls["req-2"] != 1 {
		t.Fatalf("status calls = %v", gen.statusCalls)
	}
}

func TestRunSkipsItemsWithModels(t *testing.T) {
	gen := &fakeGenerator{}
	o, store, dir, _, _ := newTestOrchestrator(t, gen, run.CreateMissingOnly, 0)
	seedItem(t, store, dir, "alpha", true)

	collector := run.NewCollector("run-1", "models")
	if err := o.Run(context.Background(), "", collector); err != nil {
		t.Fatalf("run: %v", err)
	}

	results := collector.Results()
	if len(results) != 1 || results[0].Status != run.StatusSkipped {
		t.Fatalf("results = %+v", results)
	}
	if len(gen.submitted) != 0 {
		t.Fatalf("skipped item was submitted: %v", gen.submitted)
	}
}

func TestRunRegenerateResubmitsFinishedItems(t *testing.T) {
	gen := &fakeGenerator{statuses: map[string][]meshgen.JobStatus{
		"req-1": {{State: meshgen.StateSucceeded, ResultURL: "https://meshes.test/a", ResultExt: "glb"}},
	}}
	o, store, dir, _, _ := newTestOrchestrator(t, gen, run.Regenerate, 0)
	seedItem(t, store, dir, "alpha", true)

	collector := run.NewCollector("run-1", "models")
	if err := o.Run(context.Background(), "", collector); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := collector.Results()[0].Status; got != run.StatusSuccess {
		t.Fatalf("status = %q, want success", got)
	}
	if len(gen.submitted) != 1 {
		t.Fatalf("submissions = %v, want 1", gen.submitted)
	}
}

func TestRunMissingSpriteFileFailsItem(t *testing.T) {
	gen := &fakeGenerator{}
	o, store, dir, _, _ := newTestOrchestrator(t, gen, run.CreateMissingOnly, 0)
	record := seedItem(t, store, dir, "alpha", false)
	if err := os.Remove(record.SpriteRef); err != nil {
		t.Fatal(err)
	}

	collector := run.NewCollector("run-1", "models")
	if err := o.Run(context.Background(), "", collector); err != nil {
		t.Fatalf("run: %v", err)
	}

	results := collector.Results()
	if len(results) != 1 || results[0].Status != run.StatusFailed {
		t.Fatalf("results = %+v", results)
	}
	if len(gen.submitted) != 0 {
		t.Fatal("item with unreadable sprite must not be submitted")
	}
}

func TestRunFailedJobRecordsReason(t *testing.T) {
	gen := &fakeGenerator{statuses: map[string][]meshgen.JobStatus{
		"req-1": {{State: meshgen.StateFailed, Message: "mesh reconstruction diverged"}},
	}}
	o, store, dir, _, _ := newTestOrchestrator(t, gen, run.CreateMissingOnly, 0)
	seedItem(t, store, dir, "alpha", false)

	collector := run.NewCollector("run-1", "models")
	if err := o.Run(context.Background(), "", collector); err != nil {
		t.Fatalf("run: %v", err)
	}

	result := collector.Results()[0]
	if result.Status != run.StatusFailed {
		t.Fatalf("status = %q", result.Status)
	}
	if !strings.Contains(result.Err, "mesh reconstruction diverged") {
		t.Fatalf("error %q missing provider reason", result.Err)
	}

	record, _, err := store.Get("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if record.HasModel() {
		t.Fatal("failed job must not record a model ref")
	}
}

func TestRunMaxWaitAbandonsPendingJobs(t *testing.T) {
	gen := &fakeGenerator{statuses: map[string][]meshgen.JobStatus{
		"req-1": {{State: meshgen.StateInProgress}},
	}}
	o, store, dir, _, _ := newTestOrchestrator(t, gen, run.CreateMissingOnly, 12*time.Second)
	seedItem(t, store, dir, "alpha", false)

	collector := run.NewCollector("run-1", "models")
	if err := o.Run(context.Background(), "", collector); err != nil {
		t.Fatalf("run: %v", err)
	}

	results := collector.Results()
	if len(results) != 1 || results[0].Status != run.StatusFailed {
		t.Fatalf("results = %+v", results)
	}
	if !strings.Contains(results[0].Err, "unfinished") {
		t.Fatalf("error %q should mention the wait budget", results[0].Err)
	}
}

func TestRunOnlyFilterLimitsSubmissions(t *testing.T) {
	gen := &fakeGenerator{statuses: map[string][]meshgen.JobStatus{
		"req-1": {{State: meshgen.StateSucceeded, ResultURL: "https://meshes.test/a", ResultExt: "glb"}},
	}}
	o, store, dir, _, _ := newTestOrchestrator(t, gen, run.CreateMissingOnly, 0)
	seedItem(t, store, dir, "alpha", false)
	seedItem(t, store, dir, "beta", false)

	collector := run.NewCollector("run-1", "models")
	if err := o.Run(context.Background(), "beta", collector); err != nil {
		t.Fatalf("run: %v", err)
	}

	results := collector.Results()
	if len(results) != 1 || results[0].SubjectID != "beta" {
		t.Fatalf("results = %+v", results)
	}
	if len(gen.submitted) != 1 {
		t.Fatalf("submissions = %d, want 1", len(gen.submitted))
	}
}
