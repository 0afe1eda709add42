package registry_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"placeforge/internal/registry"
	"placeforge/internal/services"
)

func openStore(t *testing.T, dir string) *registry.Store {
	t.Helper()
	store, err := registry.Open(filepath.Join(dir, "registry.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenAbsentFileYieldsEmptyStore(t *testing.T) {
	store := openStore(t, t.TempDir())
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", store.Len())
	}
}

func TestOpenMalformedDocumentIsRunFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	_, err := registry.Open(path)
	if err == nil {
		t.Fatal("expected error for malformed document")
	}
	if !errors.Is(err, services.ErrRegistryIO) {
		t.Fatalf("expected registry io marker, got %v", err)
	}
	if !services.RunFatal(err) {
		t.Fatalf("malformed registry must be run-fatal: %v", err)
	}
}

func TestUpsertMergePreservesFields(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir)

	first := registry.Record{
		ID:        "x",
		Name:      "X",
		Category:  registry.CategoryBuilding,
		Footprint: &registry.Footprint{W: 2, H: 2},
	}
	if err := store.Upsert(first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.Upsert(registry.Record{ID: "x", SpriteRef: "x.png"}); err != nil {
		t.Fatalf("sprite upsert: %v", err)
	}
	if err := store.Upsert(registry.Record{ID: "x", ModelRef: "f"}); err != nil {
		t.Fatalf("model upsert: %v", err)
	}

	record, ok, err := store.Get("x")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if record.Name != "X" || record.Category != registry.CategoryBuilding {
		t.Fatalf("earlier fields erased: %+v", record)
	}
	if record.Footprint == nil || record.Footprint.W != 2 || record.Footprint.H != 2 {
		t.Fatalf("footprint erased: %+v", record)
	}
	if record.SpriteRef != "x.png" || record.ModelRef != "f" {
		t.Fatalf("artifact refs wrong: %+v", record)
	}
}

func TestUpsertDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir)
	if err := store.Upsert(registry.Record{ID: "ferry-building", Name: "Ferry Building"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, dir)
	if !reopened.Exists("ferry-building") {
		t.Fatal("entry lost across reopen")
	}
}

func TestUpsertPreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	seed := `{"x":{"id":"x","name":"X","custom_flag":true}}`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store, err := registry.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Upsert(registry.Record{ID: "x", SpriteRef: "x.png"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded["x"]["custom_flag"]) != "true" {
		t.Fatalf("unknown field dropped: %s", raw)
	}
	if string(decoded["x"]["sprite_ref"]) != `"x.png"` {
		t.Fatalf("new field missing: %s", raw)
	}
}

func TestUpsertRejectsModelWithoutSprite(t *testing.T) {
	store := openStore(t, t.TempDir())
	err := store.Upsert(registry.Record{ID: "x", ModelRef: "x.glb"})
	if err == nil {
		t.Fatal("expected invariant violation")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestQueryPredicate(t *testing.T) {
	store := openStore(t, t.TempDir())
	seed := []registry.Record{
		{ID: "a", Name: "A", SpriteRef: "a.png"},
		{ID: "b", Name: "B", SpriteRef: "b.png", ModelRef: "b.glb"},
		{ID: "c", Name: "C"},
	}
	for _, record := range seed {
		if err := store.Upsert(record); err != nil {
			t.Fatalf("upsert %s: %v", record.ID, err)
		}
	}
	ids, err := store.Query(func(r registry.Record) bool {
		return r.HasSprite() && !r.HasModel()
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("expected [a], got %v", ids)
	}
}

func TestOpenRefusesSecondWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	first, err := registry.Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	defer first.Close()

	if _, err := registry.Open(path); err == nil {
		t.Fatal("expected second open to fail while lock held")
	}
}

func TestParseCategory(t *testing.T) {
	if _, err := registry.ParseCategory("  Landmark "); err != nil {
		t.Fatalf("expected normalization, got %v", err)
	}
	if _, err := registry.ParseCategory("spaceship"); err == nil {
		t.Fatal("expected unknown category error")
	}
}
