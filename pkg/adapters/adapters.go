// Package adapters normalizes each external provider into canonical
// structures the detectors consume. Adapters tolerate outages: a failing
// provider yields an error the scheduler records in the run log, never a
// partial or fabricated payload.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Window is the observation interval an adapter fetches.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowEnding returns a window of the given span ending at end.
func WindowEnding(end time.Time, span time.Duration) Window {
	return Window{Start: end.Add(-span), End: end}
}

// httpClient wraps a provider endpoint with a timeout and a circuit
// breaker so a provider that keeps failing is skipped quickly instead of
// burning the whole fetch budget every cycle.
type httpClient struct {
	name    string
	base    string
	hc      *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newHTTPClient(name, base string, timeout time.Duration) *httpClient {
	return &httpClient{
		name: name,
		base: base,
		hc:   &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				zap.S().Warnf("Provider %s circuit %s -> %s", name, from, to)
			},
		}),
	}
}

// getJSON fetches base+path and decodes the JSON body into out.
func (c *httpClient) getJSON(ctx context.Context, path string, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s request: %w", c.name, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s fetch failed: %w", c.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", c.name, err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", c.name, err)
		}
		return nil, nil
	})
	return err
}
