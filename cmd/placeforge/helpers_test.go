package main

import (
	"path/filepath"
	"reflect"
	"testing"

	"placeforge/internal/testsupport"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "-"},
		{1.5, "1.5s"},
		{125.04, "2m5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.seconds); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFilterQueries(t *testing.T) {
	queries := []string{"Ferry Building", "Coit Tower", "ferry building "}
	got := filterQueries(queries, "ferry building")
	want := []string{"Ferry Building", "ferry building "}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("filterQueries = %v, want %v", got, want)
	}
}

func TestReadNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "places.txt")
	testsupport.WriteFile(t, path, []byte("# downtown set\nFerry Building\n\n  Coit Tower  \n"))

	names, err := readNames(path)
	if err != nil {
		t.Fatalf("readNames: %v", err)
	}
	want := []string{"Ferry Building", "Coit Tower"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
}
