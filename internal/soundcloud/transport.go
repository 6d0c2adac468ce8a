package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// maxBodySize bounds API response bodies
const maxBodySize = 4 << 20

// initialBackoff is the delay before the first retry
var initialBackoff = 1 * time.Second

// get performs an authenticated GET against the API and decodes the
// JSON body into out, retrying network errors and temporary statuses
// with exponential backoff.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	target, err := c.withClientID(endpoint)
	if err != nil {
		return fmt.Errorf("failed to build request url: %w", err)
	}

	var lastErr error
	backoff := initialBackoff

	for i := 0; i < c.maxRetries; i++ {
		c.logger.Debug().Str("url", endpoint).Int("attempt", i+1).Msg("Calling API")

		body, err := c.do(ctx, target)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			return nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !shouldRetry(err) || i == c.maxRetries-1 {
			break
		}

		c.logger.Debug().Err(err).Dur("backoff", backoff).Msg("Retrying request")
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff)
	}

	var scErr *Error
	if errors.As(lastErr, &scErr) && !scErr.Temporary() {
		return lastErr
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}

// do runs one request and returns the body of a 200 response
func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "scplayer/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &Error{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			apiErr.Message = eb.first()
		}
		return nil, apiErr
	}
	return body, nil
}

// shouldRetry reports whether a failed attempt is worth repeating
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if IsTemporary(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// nextBackoff doubles the delay, capped at 30 seconds
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
