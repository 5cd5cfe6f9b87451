package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FreePeak/threejs-mcp-server/internal/config"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/logging"
	scenechannel "github.com/FreePeak/threejs-mcp-server/internal/infrastructure/scene"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/server"
	"github.com/FreePeak/threejs-mcp-server/internal/infrastructure/viewer"
	"github.com/FreePeak/threejs-mcp-server/internal/usecases/scene"
)

const instructions = "Call getSceneState before changing the scene and address objects by the ids it reports."

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(flags.Options())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyFlags(flags)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig()
	if cfg.Log.Development {
		logConfig = logging.DevelopmentConfig()
	}
	logConfig.Level = logging.ParseLevel(cfg.Log.Level)
	logger, err := logging.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	// stdout carries the MCP protocol; gin must never write there.
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = os.Stderr
	gin.DefaultErrorWriter = os.Stderr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	channel := scenechannel.NewChannel(logger)

	viewerServer := viewer.NewServer(cfg.Viewer.Addr, channel,
		viewer.WithLogger(logger),
		viewer.WithQueueSize(cfg.Viewer.SendQueue),
		viewer.WithReadLimit(cfg.Viewer.ReadLimit),
		viewer.WithWriteTimeout(cfg.Viewer.WriteTimeout),
	)
	if err := viewerServer.Listen(); err != nil {
		logger.Fatal("Failed to start viewer endpoint", logging.Fields{"error": err.Error()})
	}
	go func() {
		if err := viewerServer.Serve(); err != nil {
			logger.Error("Viewer endpoint stopped", logging.Fields{"error": err.Error()})
			cancel()
		}
	}()

	srv := server.NewServer(cfg.Server.Name, cfg.Server.Version).
		WithLogger(logger).
		WithInstructions(firstNonEmpty(cfg.Server.Instructions, instructions)).
		WithToolHandler(scene.NewToolHandler(channel, logger)).
		WithPromptHandler(scene.NewPromptHandler())

	if err := srv.Connect(server.NewStdioTransport(server.WithStdioLogger(logger))); err != nil {
		logger.Fatal("Error connecting transport", logging.Fields{"error": err.Error()})
	}
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Error starting server", logging.Fields{"error": err.Error()})
	}
	logger.Info("MCP server running on stdio", logging.Fields{
		"name":        cfg.Server.Name,
		"version":     cfg.Server.Version,
		"viewer_addr": viewerServer.Addr(),
	})

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", logging.Fields{"signal": sig.String()})
	case <-srv.Done():
		logger.Info("Client closed the MCP stream, shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := viewerServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Error closing viewer endpoint", logging.Fields{"error": err.Error()})
	}
	if err := srv.Stop(); err != nil {
		logger.Warn("Error stopping server", logging.Fields{"error": err.Error()})
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
