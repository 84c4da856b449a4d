package vatsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// firstChoice is a deterministic Chooser for tests.
func firstChoice(urls []string) string { return urls[0] }

// lastChoice picks the final mirror.
func lastChoice(urls []string) string { return urls[len(urls)-1] }

// TestResolve tests mirror selection from the status document.
func TestResolve(t *testing.T) {
	t.Run("Chooser picks among mirrors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"data": {
					"v3": ["https://a.test/v3", "https://b.test/v3"],
					"transceivers": ["https://a.test/tx", "https://b.test/tx"],
					"servers": [], "servers_sweatbox": [], "servers_all": []
				},
				"user": ["https://stats.test/"],
				"metar": ["https://metar.test/"]
			}`)
		}))
		defer server.Close()

		r := NewResolver(Config{HTTPClient: server.Client(), StatusURL: server.URL, Chooser: lastChoice})
		endpoints, err := r.Resolve(context.Background())
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if endpoints.LiveDataURL != "https://b.test/v3" {
			t.Errorf("Expected b.test v3, got %s", endpoints.LiveDataURL)
		}
		if endpoints.TransceiversURL != "https://b.test/tx" {
			t.Errorf("Expected b.test transceivers, got %s", endpoints.TransceiversURL)
		}
	})

	t.Run("Minimal document", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data": {"v3": ["https://a.test/v3"], "transceivers": ["https://a.test/tx"]}}`)
		}))
		defer server.Close()

		r := NewResolver(Config{HTTPClient: server.Client(), StatusURL: server.URL, Chooser: firstChoice})
		if _, err := r.Resolve(context.Background()); err != nil {
			t.Errorf("Expected optional lists to be optional, got: %v", err)
		}
	})
}

// TestResolveExhaustion tests empty and missing mirror lists.
func TestResolveExhaustion(t *testing.T) {
	tests := []struct {
		name string
		body string
		feed FeedType
	}{
		{"Empty v3", `{"data": {"v3": [], "transceivers": ["https://a.test/tx"]}}`, FeedV3},
		{"Empty transceivers", `{"data": {"v3": ["https://a.test/v3"], "transceivers": []}}`, FeedTransceivers},
		{"Both empty reports v3 first", `{"data": {"v3": [], "transceivers": []}}`, FeedV3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewLiveClient(context.Background(), Config{
				HTTPClient: server.Client(),
				StatusURL:  server.URL,
				Chooser:    firstChoice,
			})

			e, ok := AsError(err)
			if !ok {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if e.Kind != KindNoURLAvailable {
				t.Errorf("Expected KindNoURLAvailable, got %s", e.Kind)
			}
			if e.Feed != tt.feed {
				t.Errorf("Expected feed %s, got %s", tt.feed, e.Feed)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("Expected only the status request, got %d requests", n)
			}
		})
	}

	t.Run("Missing list is a decode failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data": {"v3": ["https://a.test/v3"]}}`)
		}))
		defer server.Close()

		r := NewResolver(Config{HTTPClient: server.Client(), StatusURL: server.URL, Chooser: firstChoice})
		_, err := r.Resolve(context.Background())
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Expected ErrDecode, got %v", err)
		}
	})

	t.Run("Status page error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client, err := NewLiveClient(context.Background(), Config{HTTPClient: server.Client(), StatusURL: server.URL})
		if client != nil {
			t.Error("Expected no client on resolution failure")
		}
		if code, ok := StatusCode(err); !ok || code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %v", err)
		}
	})
}

// TestRandomChoice tests that the default chooser only returns listed URLs.
func TestRandomChoice(t *testing.T) {
	urls := []string{"a", "b", "c"}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[RandomChoice(urls)] = true
	}
	for u := range seen {
		if u != "a" && u != "b" && u != "c" {
			t.Errorf("Unexpected choice %q", u)
		}
	}
	if len(seen) < 2 {
		t.Errorf("Expected more than one mirror over 200 draws, got %v", seen)
	}
	if got := RandomChoice([]string{"only"}); got != "only" {
		t.Errorf("Expected only, got %s", got)
	}
}
