package proto

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i2y/schemair/internal/adapter/outbound/source"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// ReflectionScheme prefixes sources read through gRPC server reflection, as
// in "grpc://localhost:50051".
const ReflectionScheme = "grpc://"

// Loader implements the usecase.SchemaLoader interface for protobuf sources.
type Loader struct {
	fetcher  *source.Fetcher
	dialOpts []grpc.DialOption
	timeout  time.Duration
	logger   *slog.Logger
}

// NewLoader creates a new protobuf Loader. Reflection connections are
// insecure unless opts supply credentials.
func NewLoader(fetcher *source.Fetcher, logger *slog.Logger, opts ...grpc.DialOption) *Loader {
	defaultOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	return &Loader{
		fetcher:  fetcher,
		dialOpts: append(defaultOpts, opts...),
		timeout:  30 * time.Second,
		logger:   logger.With("component", "proto_loader"),
	}
}

// Load reads a .proto file, a descriptor set, or the descriptors of a live
// server.
func (l *Loader) Load(ctx context.Context, config usecase.SchemaSourceConfig) (domain.APISchema, error) {
	log := l.logger.With(slog.String("source", config.URL))

	if target, ok := strings.CutPrefix(config.URL, ReflectionScheme); ok {
		return l.loadFromServer(ctx, config.URL, target)
	}

	log.Info("Loading protobuf source.")
	data, err := l.fetcher.Fetch(ctx, config)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to load protobuf source: %w", err)
	}

	var model *Model
	if strings.HasSuffix(config.URL, ".proto") {
		model, err = ParseProto(config.URL, data, config.ImportPaths)
	} else {
		model, err = ParseDescriptorSet(data)
	}
	if err != nil {
		log.Error("Failed to parse protobuf source.", slog.Any("error", err))
		return domain.APISchema{}, domain.Malformed(domain.FormatProto, config.URL, err)
	}

	log.Info("Successfully loaded protobuf source.", slog.Int("service_count", len(model.Services)))
	return domain.APISchema{Source: config.URL, Format: domain.FormatProto, RawData: data, ParsedData: model}, nil
}

// loadFromServer lists the services of target through the reflection
// service and resolves their descriptors.
func (l *Loader) loadFromServer(ctx context.Context, src, target string) (domain.APISchema, error) {
	log := l.logger.With(slog.String("target", target))
	log.Info("Fetching descriptors via gRPC reflection.")

	conn, err := grpc.NewClient(target, l.dialOpts...)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to connect to gRPC target %s: %w", target, err)
	}
	defer conn.Close()

	reqCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	refClient := grpcreflect.NewClientAuto(reqCtx, conn)
	defer refClient.Reset()

	ds := grpcurl.DescriptorSourceFromServer(reqCtx, refClient)
	model, err := modelOf(ds, nil)
	if err != nil {
		log.Error("Failed to resolve services via reflection.", slog.Any("error", err))
		return domain.APISchema{}, fmt.Errorf("failed to resolve services of %s: %w", target, err)
	}
	raw, err := descriptorSet(ds)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to collect descriptors of %s: %w", target, err)
	}

	log.Info("Successfully fetched descriptors.", slog.Int("service_count", len(model.Services)))
	return domain.APISchema{Source: src, Format: domain.FormatProto, RawData: raw, ParsedData: model}, nil
}
