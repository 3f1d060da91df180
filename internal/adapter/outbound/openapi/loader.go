package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/schemair/internal/adapter/outbound/source"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// Loader implements the usecase.SchemaLoader interface for OpenAPI documents.
type Loader struct {
	fetcher        *source.Fetcher
	autoDiscoverer *AutoDiscoverer
	logger         *slog.Logger
}

// NewLoader creates a new OpenAPI Loader.
func NewLoader(client *http.Client, fetcher *source.Fetcher, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher:        fetcher,
		autoDiscoverer: NewAutoDiscoverer(client, logger),
		logger:         logger.With("component", "openapi_loader"),
	}
}

// Load fetches and parses an OpenAPI 3 document from a URL or local file.
// Swagger 2.0 JSON documents are converted to OpenAPI 3.
func (l *Loader) Load(ctx context.Context, config usecase.SchemaSourceConfig) (domain.APISchema, error) {
	log := l.logger.With(slog.String("source", config.URL))
	log.Info("Loading OpenAPI document.")

	if source.IsRemote(config.URL) {
		if resolved := l.autoDiscoverer.ResolveSchemaSource(ctx, config.URL, config.Headers); resolved != config.URL {
			log.Info("Auto-discovered OpenAPI document.", slog.String("resolved_url", resolved))
			config.URL = resolved
		}
	}

	data, err := l.fetcher.Fetch(ctx, config)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}

	doc, err := Parse(ctx, data)
	if err != nil {
		log.Error("Failed to parse OpenAPI document.", slog.Any("error", err))
		return domain.APISchema{}, domain.Malformed(domain.FormatOpenAPI, config.URL, err)
	}
	if validateErr := doc.Validate(ctx); validateErr != nil {
		log.Warn("OpenAPI document validation failed.", slog.Any("validation_error", validateErr))
	}

	log.Info("Successfully loaded OpenAPI document.", slog.Int("path_count", doc.Paths.Len()))
	return domain.APISchema{
		Source:     config.URL,
		Format:     domain.FormatOpenAPI,
		RawData:    data,
		ParsedData: doc,
	}, nil
}

// Parse decodes an OpenAPI 3 document (JSON or YAML) or a Swagger 2.0 JSON
// document, resolving internal references.
func Parse(ctx context.Context, data []byte) (*openapi3.T, error) {
	if isSwagger2(data) {
		var v2 openapi2.T
		if err := json.Unmarshal(data, &v2); err != nil {
			return nil, fmt.Errorf("invalid Swagger 2.0 document: %w", err)
		}
		doc, err := openapi2conv.ToV3(&v2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert Swagger 2.0 document: %w", err)
		}
		loader := &openapi3.Loader{Context: ctx}
		if err := loader.ResolveRefsIn(doc, nil); err != nil {
			return nil, fmt.Errorf("failed to resolve references: %w", err)
		}
		return doc, nil
	}

	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, fmt.Errorf("document has no paths object")
	}
	return doc, nil
}

func isSwagger2(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var head struct {
		Swagger string `json:"swagger"`
	}
	return json.Unmarshal(trimmed, &head) == nil && head.Swagger != ""
}
