package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/darkden-lab/mqscope/internal/applog"
	"github.com/darkden-lab/mqscope/internal/config"
	"github.com/darkden-lab/mqscope/internal/server"
)

func main() {
	cfg := config.Load()
	logs := applog.NewBuffer(cfg.LogBufferSize)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, server.Options{Logs: logs})
	if err != nil {
		log.Printf("failed to start: %v", err)
		os.Exit(1)
	}
	if err := srv.ListenAndServe(ctx, ":"+cfg.Port); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}
