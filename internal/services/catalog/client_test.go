package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vintner/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL})
}

func TestUploadBatchSendsSelections(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload-to-shopify-batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload []Selection
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(payload) != 2 || payload[0].Gid != "gid://shopify/Product/1" {
			t.Errorf("unexpected payload: %+v", payload)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"count": 2})
	}))

	count, err := client.UploadBatch(context.Background(), []Selection{
		{Image: "a.jpg", SelectedName: "Chateau_A.jpg", Gid: "gid://shopify/Product/1"},
		{Image: "b.jpg", SelectedName: "Chateau_B.jpg"},
	})
	if err != nil {
		t.Fatalf("UploadBatch returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestUploadBatchRejectsEmptySelections(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := client.UploadBatch(context.Background(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCountFromBodyShapes(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		submitted int
		want      int
	}{
		{name: "count object", body: `{"count": 3}`, submitted: 5, want: 3},
		{name: "bare number", body: `7`, submitted: 5, want: 7},
		{name: "array", body: `[{}, {}]`, submitted: 5, want: 2},
		{name: "unknown shape", body: `{"message": "ok"}`, submitted: 5, want: 5},
		{name: "empty body", body: ``, submitted: 4, want: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := countFromBody([]byte(tc.body), tc.submitted); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestRefreshCacheDecodesMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/refresh-shopify-cache" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "cache rebuilt with 1200 products"})
	}))

	message, err := client.RefreshCache(context.Background())
	if err != nil {
		t.Fatalf("RefreshCache returned error: %v", err)
	}
	if message != "cache rebuilt with 1200 products" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestRefreshCacheHTTPError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	if _, err := client.RefreshCache(context.Background()); !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}
