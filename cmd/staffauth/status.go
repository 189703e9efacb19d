// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// ProbeStatus is the result of one health probe.
type ProbeStatus struct {
	Probe      string `json:"probe"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	jsonOutput bool
	timeout    time.Duration
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running staffauth service",
		Long:  `Query the liveness and readiness health endpoints of a running service.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "metrics-addr", "127.0.0.1:9100", "metrics/health address of the service")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-probe timeout")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client := &http.Client{Timeout: cfg.timeout}

	base := cfg.addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	statuses := []ProbeStatus{
		queryProbe(ctx, client, base, "liveness"),
		queryProbe(ctx, client, base, "readiness"),
	}

	var output string
	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		output = string(data)
	} else {
		output = formatStatusTable(statuses)
	}

	cmd.Println(output)
	return nil
}

// queryProbe calls /healthz/<probe> on base.
func queryProbe(ctx context.Context, client *http.Client, base, probe string) ProbeStatus {
	status := ProbeStatus{Probe: probe}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz/"+probe, http.NoBody)
	if err != nil {
		status.Error = fmt.Sprintf("invalid address: %v", err)
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	status.StatusCode = resp.StatusCode
	status.Body = strings.TrimSpace(string(body))
	status.Healthy = resp.StatusCode == http.StatusOK
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t------")

	for _, s := range statuses {
		switch {
		case s.Error != "":
			_, _ = fmt.Fprintf(w, "%s\tunreachable\t-\t%s\n", s.Probe, s.Error)
		case s.Healthy:
			_, _ = fmt.Fprintf(w, "%s\thealthy\t%d\t%s\n", s.Probe, s.StatusCode, s.Body)
		default:
			_, _ = fmt.Fprintf(w, "%s\tunhealthy\t%d\t%s\n", s.Probe, s.StatusCode, s.Body)
		}
	}

	_ = w.Flush()
	return buf.String()
}
