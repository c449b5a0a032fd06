package imagesearch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSearch_Placeholder(t *testing.T) {
	s := New("", testLogger())

	tests := []struct {
		query       string
		orientation Orientation
		want        string
	}{
		{"rust ownership", Landscape, "https://placehold.co/1280x720?text=rust+ownership"},
		{"a&b", Portrait, "https://placehold.co/720x1280?text=a%26b"},
		{"x", Squarish, "https://placehold.co/1024x1024?text=x"},
		{"x", "", "https://placehold.co/1280x720?text=x"},
	}
	for _, tt := range tests {
		img, err := s.Search(context.Background(), tt.query, tt.orientation, SizeRegular)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if img.URL != tt.want || !img.Placeholder {
			t.Errorf("Search(%q) = %+v, want placeholder %s", tt.query, img, tt.want)
		}
	}
}

func TestSearch_Unsplash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/photos" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Client-ID key" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Query().Get("query") != "golang" || r.URL.Query().Get("orientation") != "landscape" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"urls": {"small": "https://img/small", "regular": "https://img/regular"}}]}`))
	}))
	defer server.Close()

	s := New("key", testLogger(), WithBaseURL(server.URL))

	img, _ := s.Search(context.Background(), "golang", Landscape, SizeSmall)
	if img.URL != "https://img/small" || img.Placeholder {
		t.Errorf("Search() = %+v", img)
	}

	img, _ = s.Search(context.Background(), "golang", Landscape, SizeFull)
	if img.URL != "https://img/regular" {
		t.Errorf("Missing size should fall back to regular, got %s", img.URL)
	}
}

func TestSearch_ProviderFailureFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"no results", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"results": []}`))
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			s := New("key", testLogger(), WithBaseURL(server.URL), WithPlaceholderBaseURL("https://ph.test/"))
			img, err := s.Search(context.Background(), "go", Landscape, SizeRegular)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if img.URL != "https://ph.test/1280x720?text=go" {
				t.Errorf("Expected placeholder, got %s", img.URL)
			}
		})
	}
}
