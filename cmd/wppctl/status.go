package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/wpp-puppet/internal/daemon"
	"github.com/matheus3301/wpp-puppet/internal/session"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type statusReport struct {
	Session  string `json:"session"`
	Running  bool   `json:"running"`
	LoggedIn bool   `json:"logged_in"`
	Error    string `json:"error,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the session daemon is running and logged in",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveSession()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		report := queryStatus(ctx, name, session.SocketPath(name))
		if jsonFlag {
			return printJSON(cmd.OutOrStdout(), report)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session:   %s\n", report.Session)
		fmt.Fprintf(out, "Running:   %t\n", report.Running)
		fmt.Fprintf(out, "Logged in: %t\n", report.LoggedIn)
		if report.Error != "" {
			fmt.Fprintf(out, "Error:     %s\n", report.Error)
		}
		return nil
	},
}

// queryStatus asks the daemon's health service over its socket. An
// unreachable daemon is reported as not running rather than as an error.
func queryStatus(ctx context.Context, name, socketPath string) statusReport {
	report := statusReport{Session: name}
	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		report.Error = err.Error()
		return report
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: daemon.ServiceName})
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Running = true
	report.LoggedIn = resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	return report
}
