package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/relaymcp/relay/transport/httprpc"
	"github.com/relaymcp/relay/transport/stdio"
)

var runTransport string

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a server over stdio or HTTP",
		Long:  "Starts the selected --demo server, listening over the chosen --transport.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(context.Background())
		},
	}
	cmd.Flags().StringVar(&runTransport, "transport", "stdio", "transport to serve over: stdio, http")
	return cmd
}

func runServe(ctx context.Context) error {
	logger := newCLILogger()

	srv, err := buildDemoServer()
	if err != nil {
		return err
	}

	switch runTransport {
	case "stdio":
		logger.Info("starting server", "transport", "stdio", "demo", demoFlag)
		return stdio.NewHandler(srv).Serve(ctx)
	case "http":
		cfg := loadEnvConfig()
		logger.Info("starting server", "transport", "http", "demo", demoFlag, "addr", cfg.Addr)
		return http.ListenAndServe(cfg.Addr, httprpc.NewHandler(srv))
	default:
		return fmt.Errorf("unknown transport %q", runTransport)
	}
}
