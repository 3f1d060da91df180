package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpGoServer "github.com/mark3labs/mcp-go/server"

	"github.com/i2y/schemair/configs"
	"github.com/i2y/schemair/internal/adapter/inbound/irhttp"
	"github.com/i2y/schemair/internal/adapter/inbound/mcpserver"
)

type ServeCmd struct {
	Transport string `help:"MCP transport: sse or stdio." enum:"sse,stdio" default:"sse" short:"t"`
	LogFile   string `help:"Log file used in stdio mode." default:"/tmp/schemair.log" type:"path"`
}

func (c *ServeCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, c.logWriter())
	logger.Info("Logger initialized.", slog.String("level", cfg.ParsedLogLevel().String()), slog.String("transport", c.Transport))

	shutdownOtel, err := initOtelProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	compiler, err := newCompiler(cfg, "", logger)
	if err != nil {
		return err
	}
	compileUC, queryUC := compiler.CompileUseCase(), compiler.QueryUseCase()

	sources, err := cfg.SourceConfigs()
	if err != nil {
		return err
	}
	if len(sources) > 0 {
		logger.Info("Performing initial compilation.", slog.Int("sources", len(sources)))
		if _, err := compileUC.CompileAll(ctx, sources); err != nil {
			logger.Error("Initial compilation failed. Server startup continuing, but services may be missing.", slog.Any("error", err))
		} else {
			logger.Info("Initial compilation completed successfully.")
		}
	}

	mcpSrv := mcpGoServer.NewMCPServer("schemair", Version(), mcpGoServer.WithToolCapabilities(false))
	mcpserver.NewTools(compileUC, queryUC, logger).Register(mcpSrv)
	logger.Info("MCP server initialized.")

	adminMux := http.NewServeMux()
	irhttp.NewHandlers(compileUC, queryUC, logger).RegisterRoutes(adminMux)
	adminServer := &http.Server{
		Addr:         cfg.AdminListenAddr,
		Handler:      adminMux,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}
	go func() {
		logger.Info("Admin HTTP server starting.", slog.String("address", adminServer.Addr))
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Admin HTTP server failed to start.", slog.Any("error", err))
		}
	}()
	defer shutdownServer(cfg, logger, "Admin HTTP server", adminServer.Shutdown)

	switch c.Transport {
	case "stdio":
		logger.Info("Starting in STDIO mode.")
		if err := mcpGoServer.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server failed: %w", err)
		}
	default:
		sseServer := mcpGoServer.NewSSEServer(mcpSrv, mcpGoServer.WithBaseURL("http://"+cfg.ListenAddr))
		go func() {
			logger.Info("MCP SSE server starting.", slog.String("address", cfg.ListenAddr))
			if err := sseServer.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("MCP SSE server failed to start.", slog.Any("error", err))
				stop()
			}
		}()
		<-ctx.Done()
		logger.Info("Shutting down servers...")
		shutdownServer(cfg, logger, "MCP SSE server", sseServer.Shutdown)
	}
	return nil
}

// logWriter keeps stdout free for the protocol in stdio mode.
func (c *ServeCmd) logWriter() io.Writer {
	if c.Transport != "stdio" {
		return os.Stderr
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return io.Discard
	}
	return f
}

func shutdownServer(cfg *configs.Config, logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error(name+" graceful shutdown failed.", slog.Any("error", err))
		return
	}
	logger.Info(name + " shut down gracefully.")
}
