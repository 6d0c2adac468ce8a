// Package soundcloud resolves per-track stream metadata from the
// SoundCloud HTTP API.
package soundcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

// DefaultBaseURL is the public API endpoint
const DefaultBaseURL = "https://api.soundcloud.com"

// Config holds client configuration.
type Config struct {
	ClientID   string       // Required: application client id
	BaseURL    string       // Optional: defaults to DefaultBaseURL, used for testing
	HTTPClient *http.Client // Optional: defaults to http.DefaultClient
	MaxRetries int          // Optional: attempts per request, defaults to 3
}

// Client fetches track metadata
type Client struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     zerolog.Logger
}

// NewClient creates a new SoundCloud client.
//
// Returns an error if ClientID is missing.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("soundcloud: client id is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		clientID:   cfg.ClientID,
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		logger:     logger.With().Str("component", "soundcloud").Logger(),
	}, nil
}

// trackResponse is the subset of GET /tracks/{id} the player needs
type trackResponse struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	StreamURL   string `json:"stream_url"`
}

// Resolve fetches the description and stream location of a track. The
// returned stream URL carries the client id so it can be opened as is.
func (c *Client) Resolve(ctx context.Context, id catalog.TrackID) (*catalog.ExtendedInfo, error) {
	endpoint := c.baseURL + "/tracks/" + strconv.FormatInt(int64(id), 10)

	var resp trackResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.StreamURL == "" {
		return nil, fmt.Errorf("soundcloud: track %d is not streamable", id)
	}

	stream, err := c.withClientID(resp.StreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid stream url for track %d: %w", id, err)
	}

	c.logger.Debug().Int64("track_id", int64(id)).Msg("Resolved track")
	return &catalog.ExtendedInfo{
		Description: resp.Description,
		StreamURL:   stream,
	}, nil
}

// withClientID sets the client_id query parameter on raw
func (c *Client) withClientID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client_id", c.clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
