// Package httpclient provides the retrying HTTP client SolGuard's
// narrative signal sources (internal/narrative) use. Transient failures
// are retried with exponential backoff, at most 3 attempts in total
// (2 retries). The agent loop retries LLM transport errors with its
// own counter, not through this package.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client wraps http.Client with bounded retry on 5xx/429/network
// errors. The underlying http.Client is safe for concurrent use as-is,
// so Client needs no locking of its own.
type Client struct {
	http     *http.Client
	maxTries uint64
	base     time.Duration
}

// New creates a Client with perCallTimeout applied to every request via
// the request's context, and up to 3 attempts (2 retries) with
// exponential backoff starting at 250ms.
func New(perCallTimeout time.Duration) *Client {
	return &Client{
		http:     &http.Client{Timeout: perCallTimeout},
		maxTries: 3,
		base:     250 * time.Millisecond,
	}
}

// Get issues a GET request to url with ctx, retrying transient
// failures. The returned body has been fully read and the response
// closed — callers get []byte, not an io.ReadCloser, since every
// SolGuard HTTP consumer (JSON signal feeds) wants the whole payload.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err // network error: retryable
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("http_failure: %s returned %d", url, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("http_failure: %s returned %d: %s", url, resp.StatusCode, string(b)))
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	policy := backoff.WithContext(boundedBackoff(c.base, c.maxTries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// boundedBackoff builds an exponential backoff policy with a fixed
// retry ceiling (maxTries attempts total, including the first).
func boundedBackoff(base time.Duration, maxTries uint64) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = base
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0 // bounded by retry count, not elapsed time
	return backoff.WithMaxRetries(eb, maxTries-1)
}
