package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPPusher posts the state as plain text to an HTTP endpoint. It never retries.
type HTTPPusher struct {
	url    string
	client *http.Client
}

// NewHTTPPusher creates a pusher for url using a client with the given timeout.
func NewHTTPPusher(url string, timeout time.Duration) *HTTPPusher {
	return &HTTPPusher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Push posts "open" or "closed". Any non-2xx response is an error.
func (p *HTTPPusher) Push(ctx context.Context, open bool) error {
	body := BodyClosed
	if open {
		body = BodyOpen
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", p.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", p.url, resp.StatusCode)
	}
	return nil
}
