package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"placeforge/internal/services"
)

// Store is the persisted ledger of item progress, backed by a JSON document
// keyed by item id. Unknown fields in the document survive round trips:
// entries are held as raw field maps and an upsert only overwrites the fields
// it carries. There is no internal locking; a flock on the backing file
// enforces the single-writer-per-run assumption across processes.
type Store struct {
	path    string
	lock    *flock.Flock
	entries map[string]map[string]json.RawMessage
}

// Open reads the registry document at path, creating parent directories as
// needed. An absent file yields an empty store. A malformed file is a
// run-fatal error: existing progress must never be silently discarded.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "open", "path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrRegistryIO, "registry", "open", "ensure directory", err)
	}

	lock := flock.New(path + ".lock")
	held, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrRegistryIO, "registry", "open", "acquire lock", err)
	}
	if !held {
		return nil, services.Wrap(services.ErrRegistryIO, "registry", "open", "another run is using this registry", nil)
	}

	store := &Store{
		path:    path,
		lock:    lock,
		entries: map[string]map[string]json.RawMessage{},
	}
	if err := store.read(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

func (s *Store) read() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.ErrRegistryIO, "registry", "read", s.path, err)
	}
	if len(raw) == 0 {
		return nil
	}
	var decoded map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return services.Wrap(services.ErrRegistryIO, "registry", "read", "malformed document "+s.path, err)
	}
	if decoded != nil {
		s.entries = decoded
	}
	return nil
}

// Close releases the registry lock.
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// Path returns the backing document location.
func (s *Store) Path() string { return s.path }

// Len returns the number of registered items.
func (s *Store) Len() int { return len(s.entries) }

// Exists reports whether the id has a registry entry.
func (s *Store) Exists(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// Get decodes the entry for id into a typed record.
func (s *Store) Get(id string) (Record, bool, error) {
	entry, ok := s.entries[id]
	if !ok {
		return Record{}, false, nil
	}
	record, err := decodeRecord(entry)
	if err != nil {
		return Record{}, false, services.Wrap(services.ErrRegistryIO, "registry", "get", id, err)
	}
	return record, true, nil
}

// Upsert merges the given record's set fields into any existing entry for its
// id, then durably persists the full mapping before returning. Fields the
// input does not carry are preserved, including fields this version of the
// code does not know about.
func (s *Store) Upsert(record Record) error {
	// The partial record is not validated on its own: a model-only upsert is
	// legal when the existing entry carries the sprite. The merged entry is
	// what must hold the invariants.
	if strings.TrimSpace(record.ID) == "" {
		return services.Wrap(services.ErrValidation, "registry", "upsert", "", fmt.Errorf("record id required"))
	}

	incoming, err := encodeRecord(record)
	if err != nil {
		return services.Wrap(services.ErrRegistryIO, "registry", "upsert", record.ID, err)
	}

	entry := s.entries[record.ID]
	merged := make(map[string]json.RawMessage, len(entry)+len(incoming))
	for field, value := range entry {
		merged[field] = value
	}
	for field, value := range incoming {
		merged[field] = value
	}

	// The merged entry must still honor the record invariants.
	full, err := decodeRecord(merged)
	if err != nil {
		return services.Wrap(services.ErrRegistryIO, "registry", "upsert", record.ID, err)
	}
	if err := full.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "registry", "upsert", record.ID, err)
	}

	s.entries[record.ID] = merged
	if err := s.persist(); err != nil {
		return err
	}
	return nil
}

// Query returns the sorted ids of records matching the predicate.
func (s *Store) Query(predicate func(Record) bool) ([]string, error) {
	ids := make([]string, 0, len(s.entries))
	for id, entry := range s.entries {
		record, err := decodeRecord(entry)
		if err != nil {
			return nil, services.Wrap(services.ErrRegistryIO, "registry", "query", id, err)
		}
		if predicate == nil || predicate(record) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// All returns every record sorted by id.
func (s *Store) All() ([]Record, error) {
	ids, err := s.Query(nil)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		record, _, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// persist writes the full mapping atomically: encode to a sibling temp file,
// then rename over the document.
func (s *Store) persist() error {
	encoded, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrRegistryIO, "registry", "persist", "encode", err)
	}
	encoded = append(encoded, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".registry-*.json")
	if err != nil {
		return services.Wrap(services.ErrRegistryIO, "registry", "persist", "temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrRegistryIO, "registry", "persist", "write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrRegistryIO, "registry", "persist", "sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrRegistryIO, "registry", "persist", "close", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrRegistryIO, "registry", "persist", "rename", err)
	}
	return nil
}

func encodeRecord(record Record) (map[string]json.RawMessage, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("explode record: %w", err)
	}
	return fields, nil
}

func decodeRecord(entry map[string]json.RawMessage) (Record, error) {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return Record{}, fmt.Errorf("encode entry: %w", err)
	}
	var record Record
	if err := json.Unmarshal(encoded, &record); err != nil {
		return Record{}, fmt.Errorf("decode entry: %w", err)
	}
	return record, nil
}
