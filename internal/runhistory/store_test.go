package runhistory_test

import (
	"context"
	"testing"
	"time"

	"placeforge/internal/run"
	"placeforge/internal/runhistory"
)

func TestRecordAndList(t *testing.T) {
	store, err := runhistory.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	summaries := []run.Summary{
		{RunID: "run-1", Kind: "generate", Timestamp: "2026-08-01T10:00:00Z", Total: 3, Successful: 2, Failed: 1},
		{RunID: "run-2", Kind: "models", Timestamp: "2026-08-02T10:00:00Z", Total: 2, Successful: 2},
	}
	for _, summary := range summaries {
		if err := store.Record(ctx, summary, "/tmp/"+summary.RunID+".json"); err != nil {
			t.Fatalf("Record %s: %v", summary.RunID, err)
		}
	}

	entries, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(entries))
	}
	if entries[0].RunID != "run-2" {
		t.Fatalf("expected newest first, got %q", entries[0].RunID)
	}
	if entries[1].Total != 3 || entries[1].Failed != 1 {
		t.Fatalf("counts wrong: %+v", entries[1])
	}
	want, _ := time.Parse(time.RFC3339, "2026-08-02T10:00:00Z")
	if !entries[0].FinishedAt.Equal(want) {
		t.Fatalf("timestamp wrong: %v", entries[0].FinishedAt)
	}
}

func TestListLimit(t *testing.T) {
	store, err := runhistory.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		summary := run.Summary{
			RunID:     string(rune('a' + i)),
			Kind:      "generate",
			Timestamp: time.Date(2026, 8, 1+i, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		}
		if err := store.Record(ctx, summary, ""); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	entries, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit 2, got %d", len(entries))
	}
}
