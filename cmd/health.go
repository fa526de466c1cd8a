package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of a running docsite server",
	Long: `Query the /__health endpoint of a running server and exit non-zero when it
is unreachable or reports an unreadable content root or 404 page.

This command is intended for container health checks and readiness probes.`,
	Args: cobra.NoArgs,
	RunE: runHealthCheck,
}

var (
	healthHost    string
	healthPort    int
	healthTimeout time.Duration
	healthVerbose bool
)

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().StringVarP(&healthHost, "host", "H", "localhost", "Host of the server to check")
	healthCmd.Flags().IntVarP(&healthPort, "port", "p", 0, "Port of the server to check (default from config)")
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 3*time.Second, "Timeout for the health request")
	healthCmd.Flags().BoolVarP(&healthVerbose, "verbose", "v", false, "Print the full health report")
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	port := healthPort
	if port == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		port = cfg.Server.Port
	}

	url := "http://" + net.JoinHostPort(healthHost, strconv.Itoa(port)) + server.HealthPath
	status, err := probeHealth(cmd.Context(), url, healthTimeout)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "❌ %s unreachable: %v\n", url, err)
		return err
	}

	out := cmd.OutOrStdout()
	if healthVerbose {
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Fprintln(out, string(data))
	} else if status.Healthy() {
		fmt.Fprintf(out, "✅ healthy (%s, serving %s)\n", status.Version, status.ContentRoot)
	} else {
		fmt.Fprintln(out, "❌ unhealthy")
		for name, result := range status.Checks {
			if result != "ok" {
				fmt.Fprintf(out, "  - %s: %s\n", name, result)
			}
		}
	}

	if !status.Healthy() {
		if result := status.Checks["fallback"]; result != "" && result != "ok" {
			return docerrors.NewEnhancedError("Health check failed", errors.New(result),
				docerrors.FallbackMissingError(status.Fallback, status.ContentRoot))
		}
		return errors.New("health check failed")
	}
	return nil
}

// probeHealth fetches and decodes the health report at url.
func probeHealth(ctx context.Context, url string, timeout time.Duration) (*server.HealthStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status server.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding health response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK && status.Healthy() {
		status.Status = server.StatusUnhealthy
	}
	return &status, nil
}
