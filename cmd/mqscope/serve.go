package main

import (
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/darkden-lab/mqscope/internal/applog"
	"github.com/darkden-lab/mqscope/internal/config"
	"github.com/darkden-lab/mqscope/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		port   string
		open   bool
		memory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API and websocket server",
		Long: `Starts the HTTP API on the configured port. Without a reachable database
(or with --memory) everything is kept in memory until the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			logs := applog.NewBuffer(cfg.LogBufferSize)
			log.SetOutput(io.MultiWriter(cmd.ErrOrStderr(), logs))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg, server.Options{NoDatabase: memory, Logs: logs})
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			if open {
				url := localURL(cfg.Port)
				if err := browser.OpenURL(url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser. Visit %s\n", url)
				}
			}
			return srv.ListenAndServe(ctx, ":"+cfg.Port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the UI in a browser once started")
	cmd.Flags().BoolVar(&memory, "memory", false, "Skip the database and keep state in memory")
	return cmd
}

func newOpenCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a running server in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = config.Load().Port
			}
			url := localURL(port)
			fmt.Fprintf(cmd.OutOrStdout(), "Opening %s\n", url)
			return browser.OpenURL(url)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port the server listens on")
	return cmd
}

func localURL(port string) string {
	return fmt.Sprintf("http://localhost:%s", port)
}
