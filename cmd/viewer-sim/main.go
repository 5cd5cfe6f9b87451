package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/logging"
	"github.com/FreePeak/threejs-mcp-server/internal/viewersim"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8082/", "Viewer endpoint URL")
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	logConfig := logging.DevelopmentConfig()
	logConfig.Level = logging.ParseLevel(*logLevel)
	logger, err := logging.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := viewersim.Dial(ctx, *url, logger)
	if err != nil {
		logger.Fatal("Failed to connect", logging.Fields{"error": err.Error()})
	}
	defer client.Close()

	if err := client.Run(ctx); err != nil {
		logger.Error("Viewer simulator stopped", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("Viewer simulator stopped", logging.Fields{"objects": len(client.Scene().Objects())})
}
