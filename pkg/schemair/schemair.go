// Package schemair compiles API descriptions into the resource IR.
//
// A Compiler wires every supported format behind one entry point. Programs
// that embed it can register their own Go SDK clients and compile them as
// reflect:// sources.
package schemair

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/i2y/schemair/internal/adapter/outbound/discovery"
	"github.com/i2y/schemair/internal/adapter/outbound/github"
	"github.com/i2y/schemair/internal/adapter/outbound/irfile"
	"github.com/i2y/schemair/internal/adapter/outbound/memrepo"
	"github.com/i2y/schemair/internal/adapter/outbound/openapi"
	"github.com/i2y/schemair/internal/adapter/outbound/proto"
	"github.com/i2y/schemair/internal/adapter/outbound/reflection"
	"github.com/i2y/schemair/internal/adapter/outbound/smithy"
	"github.com/i2y/schemair/internal/adapter/outbound/source"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

type (
	// Result is a compiled service plus the warnings raised while compiling it.
	Result = domain.Result
	// Service is the IR of one compiled API.
	Service = domain.ServiceDefinition
	// Source describes where an API description lives and how to read it.
	Source = usecase.SchemaSourceConfig
	// Format names an input format.
	Format = domain.SchemaFormat
)

// Supported input formats.
const (
	FormatSmithy     = domain.FormatSmithy
	FormatOpenAPI    = domain.FormatOpenAPI
	FormatDiscovery  = domain.FormatDiscovery
	FormatProto      = domain.FormatProto
	FormatReflection = domain.FormatReflection
)

// Options configures a Compiler. The zero value is usable.
type Options struct {
	// HTTPClient fetches remote documents. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// DiscoveryEndpoint overrides the Google API Discovery directory.
	DiscoveryEndpoint string
	MaxDepth          int
	Parallelism       int
	CacheSize         int
	// OutputDir, when set, receives one JSON file per compiled service.
	OutputDir string
	// DialOptions are used when dialing grpc:// reflection endpoints.
	DialOptions []grpc.DialOption
	Logger      *slog.Logger
}

// Compiler compiles sources of every supported format and keeps the results
// in memory by service name.
type Compiler struct {
	compile  *usecase.CompileSchemaUseCase
	query    *usecase.QueryServicesUseCase
	registry *reflection.Registry
	writer   *irfile.Writer
	logger   *slog.Logger
}

// New wires loaders and converters for every format.
func New(opts Options) (*Compiler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	fetcher := source.NewFetcher(httpClient, logger).WithGitHub(github.NewClient(nil, logger))
	registry := reflection.NewRegistry()

	loaders := map[domain.SchemaFormat]usecase.SchemaLoader{
		domain.FormatSmithy:     smithy.NewLoader(fetcher, logger),
		domain.FormatOpenAPI:    openapi.NewLoader(httpClient, fetcher, logger),
		domain.FormatDiscovery:  discovery.NewLoader(httpClient, fetcher, opts.DiscoveryEndpoint, logger),
		domain.FormatProto:      proto.NewLoader(fetcher, logger, opts.DialOptions...),
		domain.FormatReflection: reflection.NewLoader(registry, logger),
	}
	converters := map[domain.SchemaFormat]usecase.SchemaConverter{
		domain.FormatSmithy:     smithy.NewConverter(logger),
		domain.FormatOpenAPI:    openapi.NewConverter(logger),
		domain.FormatDiscovery:  discovery.NewConverter(logger),
		domain.FormatProto:      proto.NewConverter(logger),
		domain.FormatReflection: reflection.NewConverter(logger),
	}

	c := &Compiler{registry: registry, logger: logger.With("component", "compiler")}
	compileOpts := usecase.CompileOptions{
		MaxDepth:    opts.MaxDepth,
		Parallelism: opts.Parallelism,
		CacheSize:   opts.CacheSize,
	}
	if opts.OutputDir != "" {
		c.writer = irfile.NewWriter(opts.OutputDir, logger)
		compileOpts.Sink = c.writer
	}

	repo := memrepo.NewInMemoryServiceRepository(logger)
	compileUC, err := usecase.NewCompileSchemaUseCase(loaders, converters, repo, compileOpts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile use case: %w", err)
	}
	c.compile = compileUC
	c.query = usecase.NewQueryServicesUseCase(repo, logger)
	return c, nil
}

// RegisterClient makes client compilable as "reflect://<name>". client is
// usually a typed nil such as (*s3.Client)(nil).
func (c *Compiler) RegisterClient(name, version string, client any) error {
	if err := c.registry.Register(name, version, client); err != nil {
		return fmt.Errorf("failed to register client %s: %w", name, err)
	}
	c.logger.Debug("Registered client.", slog.String("client", name), slog.String("version", version))
	return nil
}

// Clients lists the registered client names.
func (c *Compiler) Clients() []string {
	return c.registry.Names()
}

// Compile compiles one source.
func (c *Compiler) Compile(ctx context.Context, src Source) (*Result, error) {
	return c.compile.Execute(ctx, src)
}

// CompileAll compiles sources concurrently. A failed source leaves a nil
// entry and its error is joined into the returned error.
func (c *Compiler) CompileAll(ctx context.Context, srcs []Source) ([]*Result, error) {
	return c.compile.CompileAll(ctx, srcs)
}

// Services lists the compiled services in name order.
func (c *Compiler) Services(ctx context.Context) ([]Service, error) {
	return c.query.List(ctx)
}

// Service returns the compiled result of one service.
func (c *Compiler) Service(ctx context.Context, name string) (*Result, error) {
	return c.query.Get(ctx, name)
}

// OutputPath returns the file a service is written to, or "" when no output
// directory is configured or the name cannot be used as a file name.
func (c *Compiler) OutputPath(service string) string {
	if c.writer == nil {
		return ""
	}
	path, err := c.writer.Path(service)
	if err != nil {
		return ""
	}
	return path
}

// CompileUseCase exposes the compile use case to inbound adapters.
func (c *Compiler) CompileUseCase() *usecase.CompileSchemaUseCase {
	return c.compile
}

// QueryUseCase exposes the query use case to inbound adapters.
func (c *Compiler) QueryUseCase() *usecase.QueryServicesUseCase {
	return c.query
}
