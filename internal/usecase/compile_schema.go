package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/naming"
)

const instrumentationName = "github.com/i2y/schemair/internal/usecase"

// DefaultCacheSize is the number of compiled results kept when no size is
// configured.
const DefaultCacheSize = 64

// CompileOptions tunes a CompileSchemaUseCase.
type CompileOptions struct {
	MaxDepth    int
	Parallelism int
	// CacheSize bounds the result cache; 0 means DefaultCacheSize.
	CacheSize int
	// Sink, when set, receives every compiled result after it is saved.
	Sink ResultSink
}

// CompileSchemaUseCase orchestrates loading a document, converting it into
// the IR and storing the result.
type CompileSchemaUseCase struct {
	loaders    map[domain.SchemaFormat]SchemaLoader
	converters map[domain.SchemaFormat]SchemaConverter
	repository ServiceRepository
	opts       CompileOptions
	cache      *lru.Cache[string, *domain.Result]
	tracer     trace.Tracer
	warnings   metric.Int64Counter
	logger     *slog.Logger
}

// NewCompileSchemaUseCase creates a new CompileSchemaUseCase.
// It requires maps of loaders and converters keyed by format, and a
// service repository.
func NewCompileSchemaUseCase(
	loaders map[domain.SchemaFormat]SchemaLoader,
	converters map[domain.SchemaFormat]SchemaConverter,
	repository ServiceRepository,
	opts CompileOptions,
	logger *slog.Logger,
) (*CompileSchemaUseCase, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *domain.Result](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	counter, err := otel.Meter(instrumentationName).Int64Counter("schemair.conversion.warnings",
		metric.WithDescription("Warnings recorded while converting API descriptions."))
	if err != nil {
		return nil, fmt.Errorf("failed to create warnings counter: %w", err)
	}
	return &CompileSchemaUseCase{
		loaders:    loaders,
		converters: converters,
		repository: repository,
		opts:       opts,
		cache:      cache,
		tracer:     otel.Tracer(instrumentationName),
		warnings:   counter,
		logger:     logger.With("usecase", "CompileSchema"),
	}, nil
}

// Execute loads the document described by source, converts it and saves the
// result. The format is detected from the source when it is not set, and the
// service name defaults to one derived from the source.
func (uc *CompileSchemaUseCase) Execute(ctx context.Context, source SchemaSourceConfig) (*domain.Result, error) {
	runID := uuid.NewString()
	log := uc.logger.With(slog.String("source", source.URL), slog.String("run_id", runID))

	if source.Format == "" {
		source.Format = DetectFormat(source.URL)
	}
	if source.Service == "" {
		source.Service = DefaultServiceName(source.URL)
	}
	log = log.With(slog.String("format", string(source.Format)), slog.String("service", source.Service))

	ctx, span := uc.tracer.Start(ctx, "CompileSchema.Execute", trace.WithAttributes(
		attribute.String("schemair.run_id", runID),
		attribute.String("schemair.source", source.URL),
		attribute.String("schemair.format", string(source.Format)),
	))
	defer span.End()

	result, err := uc.execute(ctx, source, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("schemair.resources", len(result.Service.Resources)),
		attribute.Int("schemair.warnings", len(result.Warnings)),
	)
	return result, nil
}

func (uc *CompileSchemaUseCase) execute(ctx context.Context, source SchemaSourceConfig, log *slog.Logger) (*domain.Result, error) {
	log.Info("Starting schema compilation.")

	loader, ok := uc.loaders[source.Format]
	if !ok {
		log.Error("No schema loader available for format.")
		return nil, fmt.Errorf("%w: no loader for %q", ErrUnsupportedFormat, source.Format)
	}
	converter, ok := uc.converters[source.Format]
	if !ok {
		log.Error("No schema converter available for format.")
		return nil, fmt.Errorf("%w: no converter for %q", ErrUnsupportedFormat, source.Format)
	}

	// 1. Load
	loadCtx, span := uc.tracer.Start(ctx, "CompileSchema.Load")
	schema, err := loader.Load(loadCtx, source)
	span.End()
	if err != nil {
		log.Error("Failed to load schema.", slog.Any("error", err))
		return nil, fmt.Errorf("failed to load schema from %s: %w", source.URL, err)
	}
	log.Info("Schema loaded.", slog.Int("bytes", len(schema.RawData)))

	// 2. Convert, unless an identical document was compiled before.
	key := cacheKey(schema, source)
	result, hit := uc.cache.Get(key)
	if hit {
		log.Info("Using cached compilation result.")
	} else {
		_, span := uc.tracer.Start(ctx, "CompileSchema.Convert")
		result, err = converter.Convert(schema, convert.Options{
			ServiceName:  source.Service,
			Version:      source.Version,
			ProviderHint: source.Provider,
			MaxDepth:     uc.opts.MaxDepth,
			Parallelism:  uc.opts.Parallelism,
			Logger:       log,
		})
		span.End()
		if err != nil {
			log.Error("Failed to convert schema.", slog.Any("error", err))
			return nil, fmt.Errorf("failed to convert schema from %s: %w", source.URL, err)
		}
		uc.cache.Add(key, result)
		uc.recordWarnings(ctx, source.Format, result.Warnings, log)
	}

	// 3. Save
	saveCtx, span := uc.tracer.Start(ctx, "CompileSchema.Save")
	defer span.End()
	if err := uc.repository.Save(saveCtx, result); err != nil {
		log.Error("Failed to save compiled service.", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save compiled service %s: %w", result.Service.Name, err)
	}
	if uc.opts.Sink != nil {
		if err := uc.opts.Sink.Write(saveCtx, result); err != nil {
			log.Error("Failed to write compiled service.", slog.Any("error", err))
			return nil, fmt.Errorf("failed to write compiled service %s: %w", result.Service.Name, err)
		}
	}

	log.Info("Successfully compiled schema.",
		slog.Int("resource_count", len(result.Service.Resources)),
		slog.Int("data_source_count", len(result.Service.DataSources)),
		slog.Int("warning_count", len(result.Warnings)))
	return result, nil
}

func (uc *CompileSchemaUseCase) recordWarnings(ctx context.Context, format domain.SchemaFormat, warnings []domain.Warning, log *slog.Logger) {
	for _, w := range warnings {
		log.Debug("Conversion warning.", slog.String("warning", w.String()))
		uc.warnings.Add(ctx, 1, metric.WithAttributes(
			attribute.String("format", string(format)),
			attribute.String("kind", string(w.Kind)),
		))
	}
}

// CompileAll compiles independent sources concurrently. Results are
// returned in source order; a failed source leaves a nil entry and its error
// is joined into the returned error.
func (uc *CompileSchemaUseCase) CompileAll(ctx context.Context, sources []SchemaSourceConfig) ([]*domain.Result, error) {
	results := make([]*domain.Result, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	if uc.opts.Parallelism > 0 {
		g.SetLimit(uc.opts.Parallelism)
	}
	for i, src := range sources {
		g.Go(func() error {
			results[i], errs[i] = uc.Execute(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		uc.logger.Warn("Some sources failed to compile.", slog.Any("error", err))
	}
	return results, err
}

// cacheKey identifies a conversion by document content and the options that
// shape its output.
func cacheKey(schema domain.APISchema, source SchemaSourceConfig) string {
	h := sha256.New()
	h.Write(schema.RawData)
	for _, part := range []string{string(schema.Format), source.Service, source.Version, string(source.Provider)} {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DetectFormat guesses the format of a source from its scheme or file
// extension. Unrecognized sources are treated as OpenAPI.
func DetectFormat(src string) domain.SchemaFormat {
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "grpc://"):
		return domain.FormatProto
	case strings.HasPrefix(lower, "reflect://"):
		return domain.FormatReflection
	case strings.HasPrefix(lower, "discovery://"), strings.Contains(lower, "$discovery"),
		strings.Contains(lower, "/discovery/v1/apis/"):
		return domain.FormatDiscovery
	}
	switch path.Ext(stripQuery(lower)) {
	case ".proto", ".protoset", ".pb", ".binpb":
		return domain.FormatProto
	}
	if strings.Contains(path.Base(stripQuery(lower)), "smithy") {
		return domain.FormatSmithy
	}
	return domain.FormatOpenAPI
}

// DefaultServiceName derives a service name from a source: the API name of
// directory and registry sources, the host of gRPC targets, and otherwise
// the file name without its extension. Names that cannot be used as a file
// name give way to convert.DefaultServiceName.
func DefaultServiceName(src string) string {
	if name := sourceName(src); naming.IsFileName(name) {
		return name
	}
	return convert.DefaultServiceName
}

func sourceName(src string) string {
	rest := stripQuery(src)
	if scheme, after, ok := strings.Cut(rest, "://"); ok {
		switch strings.ToLower(scheme) {
		case "discovery", "reflect":
			first, _, _ := strings.Cut(after, "/")
			return naming.Normalize(first)
		case "grpc":
			host := after[strings.LastIndex(after, "/")+1:]
			host, _, _ = strings.Cut(host, ":")
			return naming.Normalize(strings.ReplaceAll(host, ".", "_"))
		}
		rest = after
	}
	base := path.Base(strings.TrimRight(rest, "/"))
	for _, suffix := range []string{".json", ".yaml", ".yml", ".proto", ".protoset", ".pb", ".binpb"} {
		base = strings.TrimSuffix(base, suffix)
	}
	base = strings.TrimSuffix(base, ".smithy")
	return naming.Normalize(strings.ReplaceAll(base, ".", "_"))
}

// stripQuery drops query strings and fragments, and the @ref suffix of
// github:// sources.
func stripQuery(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if strings.HasPrefix(strings.ToLower(src), "github://") {
		if i := strings.LastIndex(src, "@"); i > strings.LastIndex(src, "/") {
			src = src[:i]
		}
	}
	return src
}
