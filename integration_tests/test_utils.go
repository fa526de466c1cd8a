//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/conneroisu/docsite/internal/server"
)

const readinessPollInterval = 50 * time.Millisecond

// WaitForServerReadiness polls the health endpoint at baseURL until the
// server reports itself healthy or ctx ends.
func WaitForServerReadiness(ctx context.Context, baseURL string) error {
	ticker := time.NewTicker(readinessPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := fetchHealth(ctx, baseURL)
		switch {
		case err != nil:
			lastErr = err
		case status.Healthy():
			return nil
		default:
			lastErr = fmt.Errorf("server reports %s", status.Status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not ready: %w", baseURL, lastErr)
		case <-ticker.C:
		}
	}
}

// fetchHealth decodes the health report; a non-200 answer still decodes.
func fetchHealth(ctx context.Context, baseURL string) (*server.HealthStatus, error) {
	client := &http.Client{Timeout: time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+server.HealthPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status server.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		status.Status = server.StatusUnhealthy
	}
	return &status, nil
}

// TestTimeout returns the per-test deadline used for end-to-end flows.
func TestTimeout() time.Duration {
	return 30 * time.Second
}
