package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"textedit/internal/config"
	"textedit/internal/editor"
	"textedit/internal/mcpserver"
	"textedit/internal/observability"
	"textedit/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-textedit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	observability.InitLogger(cfg.LogPath, cfg.LogLevel)
	log.Logger = log.Logger.With().Str("instance_id", uuid.NewString()).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if cfg.Obs.OTLP != "" {
		shutdown, err := observability.InitOTel(ctx, cfg.Obs)
		if err != nil {
			// Don't abort startup for observability failures.
			log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	engine := editor.New(
		editor.WithDefaultEncoding(cfg.DefaultEncoding),
		editor.WithMaxFileBytes(cfg.MaxFileBytes),
	)
	srv := mcpserver.New(engine)

	log.Info().Str("version", version.Version).Msg("textedit MCP server listening on stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving: %w", err)
	}
	log.Info().Msg("textedit MCP server stopped")
	return nil
}
