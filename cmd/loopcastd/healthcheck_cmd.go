// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newHealthcheckCmd() *cobra.Command {
	var port int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "probe the running daemon's /health endpoint (Docker HEALTHCHECK helper)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := http.Client{Timeout: timeout}
			url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("healthcheck failed: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck failed: status %d", resp.StatusCode)
			}
			fmt.Println("healthcheck successful")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 8088, "fan-out HTTP port to check")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}
