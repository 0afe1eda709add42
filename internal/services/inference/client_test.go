package inference_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"placeforge/internal/registry"
	"placeforge/internal/services"
	"placeforge/internal/services/inference"
)

func chatReply(content string) string {
	encoded, _ := json.Marshal(content)
	return fmt.Sprintf(`{"choices":[{"message":{"content":%s}}]}`, encoded)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *inference.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return inference.NewClient(inference.Config{APIKey: "test", BaseURL: server.URL, Model: "test-model"})
}

func TestInferParsesMetadata(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Error("missing bearer token")
		}
		w.Write([]byte(chatReply(`{"name":"Ferry Building","category":"landmark","footprint":{"w":4,"h":2},"icon":"⛴"}`)))
	})

	meta, err := client.Infer(context.Background(), []byte("png"), "Ferry Building, SF", []string{"landmark"})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if meta.Name != "Ferry Building" || meta.Category != registry.CategoryLandmark {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.Footprint.W != 4 || meta.Footprint.H != 2 || meta.Icon != "⛴" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestInferHandlesFencedPayload(t *testing.T) {
	fenced := "```json\n{\"name\":\"Pier 39\",\"category\":\"venue\",\"footprint\":{\"w\":3,\"h\":3},\"icon\":\"🦭\"}\n```"
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(chatReply(fenced)))
	})

	meta, err := client.Infer(context.Background(), []byte("png"), "Pier 39", nil)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if meta.Category != registry.CategoryVenue {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestInferRejectsInvalidMetadata(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"unknown category", `{"name":"X","category":"spaceship","footprint":{"w":1,"h":1},"icon":"x"}`},
		{"footprint out of range", `{"name":"X","category":"park","footprint":{"w":9,"h":1},"icon":"x"}`},
		{"missing name", `{"category":"park","footprint":{"w":1,"h":1},"icon":"x"}`},
		{"multi glyph icon", `{"name":"X","category":"park","footprint":{"w":1,"h":1},"icon":"xx"}`},
		{"not json", `the place looks like a park`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(chatReply(tc.payload)))
			})
			_, err := client.Infer(context.Background(), []byte("png"), "X", nil)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
		})
	}
}

func TestInferServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "try later", http.StatusTooManyRequests)
	})
	_, err := client.Infer(context.Background(), []byte("png"), "X", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestDecodeModelJSONExtractsFirstObject(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	content := "Here is the answer you asked for: {\"name\":\"Coit Tower\"} hope that helps!"
	if err := inference.DecodeModelJSON(content, &out); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if out.Name != "Coit Tower" {
		t.Fatalf("got %q", out.Name)
	}
}

func TestDecodeModelJSONEmptyPayload(t *testing.T) {
	var out map[string]any
	if err := inference.DecodeModelJSON("   ", &out); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty payload error, got %v", err)
	}
}
