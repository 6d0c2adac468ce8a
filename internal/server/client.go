package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

// APIError is a non-200 response from the control API
type APIError struct {
	Status int
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("player: %s (status %d)", e.Reason, e.Status)
}

// Client talks to a running daemon's control API
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a client for the daemon at addr, either host:port
// or a full http URL
func NewClient(addr string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Status returns the player status
func (c *Client) Status(ctx context.Context) (StatusMessage, error) {
	var st StatusMessage
	err := c.do(ctx, http.MethodGet, "/api/status", &st)
	return st, err
}

// Tracks returns the daemon's catalog
func (c *Client) Tracks(ctx context.Context) ([]catalog.Track, error) {
	var msg TracksMessage
	if err := c.do(ctx, http.MethodGet, "/api/tracks", &msg); err != nil {
		return nil, err
	}
	return msg.Tracks, nil
}

// Toggle pauses, resumes or starts playback
func (c *Client) Toggle(ctx context.Context) (StatusMessage, error) {
	return c.command(ctx, "/api/toggle")
}

// Next advances to the next track
func (c *Client) Next(ctx context.Context) (StatusMessage, error) {
	return c.command(ctx, "/api/next")
}

// Prev goes back to the previous track
func (c *Client) Prev(ctx context.Context) (StatusMessage, error) {
	return c.command(ctx, "/api/prev")
}

// Stop stops playback
func (c *Client) Stop(ctx context.Context) (StatusMessage, error) {
	return c.command(ctx, "/api/stop")
}

// Select plays the track at index
func (c *Client) Select(ctx context.Context, index int) (StatusMessage, error) {
	return c.command(ctx, "/api/select/"+strconv.Itoa(index))
}

// Watch streams websocket messages to fn until ctx is cancelled, the
// connection drops or fn returns an error
func (c *Client) Watch(ctx context.Context, fn func(*Message) error) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("invalid message: %w", err)
		}
		if err := fn(&msg); err != nil {
			return err
		}
	}
}

func (c *Client) command(ctx context.Context, path string) (StatusMessage, error) {
	var st StatusMessage
	err := c.do(ctx, http.MethodPost, path, &st)
	return st, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var em ErrorMessage
		if json.Unmarshal(body, &em) != nil || em.Reason == "" {
			em.Reason = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Reason: em.Reason}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
