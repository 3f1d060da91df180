package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/alecthomas/kong"

	"github.com/i2y/schemair/configs"
	"github.com/i2y/schemair/pkg/schemair"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Compile CompileCmd `cmd:"" help:"Compile API descriptions into the resource IR."`
	Serve   ServeCmd   `cmd:"" help:"Serve compiled services over MCP and an admin HTTP API."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("schemair"),
		kong.Description("Compile Smithy, OpenAPI, Discovery, protobuf and Go client descriptions into one resource IR."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

func loadConfig() (*configs.Config, error) {
	cfg, err := configs.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *configs.Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.ParsedLogLevel()}))
	slog.SetDefault(logger)
	return logger
}

// newCompiler builds a Compiler from cfg. outputDir overrides cfg.OutputDir
// when set.
func newCompiler(cfg *configs.Config, outputDir string, logger *slog.Logger) (*schemair.Compiler, error) {
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}
	c, err := schemair.New(schemair.Options{
		HTTPClient:        &http.Client{Timeout: cfg.HTTPClientTimeout},
		DiscoveryEndpoint: cfg.DiscoveryEndpoint,
		MaxDepth:          cfg.MaxResolutionDepth,
		Parallelism:       cfg.Parallelism,
		CacheSize:         cfg.CacheSize,
		OutputDir:         outputDir,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler: %w", err)
	}
	logger.Debug("Compiler initialized.",
		slog.Duration("http_timeout", cfg.HTTPClientTimeout),
		slog.Int("parallelism", cfg.Parallelism),
		slog.String("output_dir", outputDir))
	return c, nil
}
