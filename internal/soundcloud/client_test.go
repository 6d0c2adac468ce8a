package soundcloud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

func init() {
	initialBackoff = time.Millisecond
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{
		ClientID: "test-client",
		BaseURL:  server.URL + "/",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_RequiresClientID(t *testing.T) {
	if _, err := NewClient(Config{}, zerolog.Nop()); err == nil {
		t.Fatal("NewClient() expected error for missing client id")
	}
}

func TestResolve_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tracks/42" {
			t.Errorf("path = %q, want /tracks/42", r.URL.Path)
		}
		if got := r.URL.Query().Get("client_id"); got != "test-client" {
			t.Errorf("client_id = %q, want test-client", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 42,
			"title": "Night Drive",
			"description": "late set",
			"stream_url": "https://api.soundcloud.com/tracks/42/stream?format=mp3"
		}`))
	})

	info, err := c.Resolve(context.Background(), 42)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if info.Description != "late set" {
		t.Errorf("Description = %q, want %q", info.Description, "late set")
	}

	u, err := url.Parse(info.StreamURL)
	if err != nil {
		t.Fatalf("stream url does not parse: %v", err)
	}
	if got := u.Query().Get("client_id"); got != "test-client" {
		t.Errorf("stream client_id = %q, want test-client", got)
	}
	if got := u.Query().Get("format"); got != "mp3" {
		t.Errorf("stream format = %q, existing params must be kept", got)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCalls   int32
		wantNotFnd  bool
		errContains string
	}{
		{
			name:        "not found",
			status:      http.StatusNotFound,
			body:        `{"errors":[{"error_message":"404 - Not Found"}]}`,
			wantCalls:   1,
			wantNotFnd:  true,
			errContains: "404 - Not Found",
		},
		{
			name:        "unauthorized is not retried",
			status:      http.StatusUnauthorized,
			body:        `{"message":"invalid client"}`,
			wantCalls:   1,
			errContains: "invalid client",
		},
		{
			name:        "server error exhausts retries",
			status:      http.StatusBadGateway,
			wantCalls:   3,
			errContains: "after 3 attempts",
		},
		{
			name:        "rate limited exhausts retries",
			status:      http.StatusTooManyRequests,
			wantCalls:   3,
			errContains: "status 429",
		},
		{
			name:        "not streamable",
			status:      http.StatusOK,
			body:        `{"id": 1, "description": "x"}`,
			wantCalls:   1,
			errContains: "not streamable",
		},
		{
			name:        "invalid json",
			status:      http.StatusOK,
			body:        `{not json`,
			wantCalls:   1,
			errContains: "failed to parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Resolve(context.Background(), 1)
			if err == nil {
				t.Fatal("Resolve() expected error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %v, want containing %q", err, tt.errContains)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantNotFnd && !errors.Is(err, ErrNotFound) {
				t.Errorf("errors.Is(err, ErrNotFound) = false for %v", err)
			}
		})
	}
}

func TestResolve_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id": 7, "stream_url": "https://cdn.test/7"}`))
	})

	info, err := c.Resolve(context.Background(), 7)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !strings.HasPrefix(info.StreamURL, "https://cdn.test/7?") {
		t.Errorf("StreamURL = %q", info.StreamURL)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Resolve(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Resolve() error = %v, want deadline exceeded", err)
	}
}

func TestError_Temporary(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}

	for _, tt := range tests {
		err := &Error{Status: tt.status}
		if got := err.Temporary(); got != tt.want {
			t.Errorf("Error{%d}.Temporary() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// Verify Client satisfies the resolver shape the player consumes.
var _ interface {
	Resolve(context.Context, catalog.TrackID) (*catalog.ExtendedInfo, error)
} = (*Client)(nil)
