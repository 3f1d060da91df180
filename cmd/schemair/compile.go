package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/i2y/schemair/configs"
	"github.com/i2y/schemair/pkg/schemair"
)

type CompileCmd struct {
	Sources     []string `arg:"" optional:"" help:"Files, URLs or github:// paths to compile. Defaults to the sources of the config file."`
	Format      string   `help:"Input format: smithy, openapi, discovery, proto or reflection. Detected when empty." short:"f"`
	Service     string   `help:"Service name. Derived from the source when empty." short:"s"`
	SDKVersion  string   `help:"SDK version recorded in the IR." name:"sdk-version"`
	Provider    string   `help:"Provider override: aws, gcp, azure or k8s." short:"p"`
	ImportPaths []string `help:"Import paths for .proto sources." name:"import-path" short:"I"`
	Out         string   `help:"Directory for IR files. Overrides SCHEMAIR_OUTPUT_DIR; IR goes to stdout when both are empty." short:"o" type:"path"`
}

func (c *CompileCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	sources, err := c.sources(cfg)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources given and none configured in SCHEMAIR_CONFIG_FILE")
	}

	compiler, err := newCompiler(cfg, c.Out, logger)
	if err != nil {
		return err
	}

	results, compileErr := compiler.CompileAll(ctx, sources)
	compiled := make([]*schemair.Result, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		compiled = append(compiled, res)
		printSummary(os.Stderr, res, compiler.OutputPath(res.Service.Name))
	}
	if c.Out == "" && cfg.OutputDir == "" && len(compiled) > 0 {
		if err := writeResults(os.Stdout, compiled); err != nil {
			return err
		}
	}
	if compileErr != nil {
		logger.Error("Compilation finished with errors.",
			slog.Int("compiled", len(compiled)), slog.Int("failed", len(sources)-len(compiled)))
		return compileErr
	}
	return nil
}

// sources returns the command line sources, or the configured ones when no
// argument is given. Flags apply to every command line source.
func (c *CompileCmd) sources(cfg *configs.Config) ([]schemair.Source, error) {
	if len(c.Sources) == 0 {
		return cfg.SourceConfigs()
	}
	out := make([]schemair.Source, 0, len(c.Sources))
	for _, url := range c.Sources {
		src, err := configs.Source{
			URL:         url,
			Format:      c.Format,
			Service:     c.Service,
			Version:     c.SDKVersion,
			Provider:    c.Provider,
			ImportPaths: c.ImportPaths,
		}.SourceConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func printSummary(w io.Writer, res *schemair.Result, path string) {
	svc := res.Service
	fmt.Fprintf(w, "%s: %d resources, %d data sources, %d warnings", svc.Name, len(svc.Resources), len(svc.DataSources), len(res.Warnings))
	if path != "" {
		fmt.Fprintf(w, " -> %s", path)
	}
	fmt.Fprintln(w)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

// writeResults prints a single result as an object and several as an array.
func writeResults(w io.Writer, results []*schemair.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	var v any = results
	if len(results) == 1 {
		v = results[0]
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write IR: %w", err)
	}
	return nil
}
