package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"webchat-cli/cmd/utils"
	"webchat-cli/internal/backend"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the chat backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient(appConfig, utils.Logger())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()
		return runHealth(ctx, client, utils.Stdout())
	},
}

type prober interface {
	Probe(ctx context.Context) bool
	Endpoints() backend.Endpoints
}

// runHealth probes the backend and prints the endpoints in use. An
// unhealthy backend is a command failure.
func runHealth(ctx context.Context, p prober, w io.Writer) error {
	ep := p.Endpoints()
	healthy := p.Probe(ctx)
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	fmt.Fprintf(w, "%s Backend %s\n", utils.IconForStatus(status), status)
	fmt.Fprintf(w, "  Health: %s\n", ep.Health)
	fmt.Fprintf(w, "  Upload: %s\n", ep.Upload)
	fmt.Fprintf(w, "  Socket: %s\n", ep.Socket)
	if healthy {
		return nil
	}
	if utils.IsLocalhost(ep.Base) {
		fmt.Fprintf(w, "\nIs the chat server running on this machine? Start it or pass --server-url.\n")
	}
	return fmt.Errorf("backend unreachable at %s", ep.Health)
}

func init() {
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "How long to wait for the health endpoint")
	rootCmd.AddCommand(healthCmd)
}
