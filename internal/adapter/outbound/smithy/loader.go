package smithy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i2y/schemair/internal/adapter/outbound/source"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// Loader implements the usecase.SchemaLoader interface for Smithy JSON AST files.
type Loader struct {
	fetcher *source.Fetcher
	logger  *slog.Logger
}

// NewLoader creates a new Smithy Loader.
func NewLoader(fetcher *source.Fetcher, logger *slog.Logger) *Loader {
	return &Loader{fetcher: fetcher, logger: logger.With("component", "smithy_loader")}
}

// Load fetches and parses a Smithy model.
func (l *Loader) Load(ctx context.Context, config usecase.SchemaSourceConfig) (domain.APISchema, error) {
	log := l.logger.With(slog.String("source", config.URL))
	log.Info("Loading Smithy model.")

	data, err := l.fetcher.Fetch(ctx, config)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to load Smithy model: %w", err)
	}
	model, err := Parse(data)
	if err != nil {
		log.Error("Failed to parse Smithy model.", slog.Any("error", err))
		return domain.APISchema{}, domain.Malformed(domain.FormatSmithy, config.URL, err)
	}

	log.Info("Successfully loaded Smithy model.", slog.Int("shape_count", len(model.Shapes)))
	return domain.APISchema{
		Source:     config.URL,
		Format:     domain.FormatSmithy,
		RawData:    data,
		ParsedData: model,
	}, nil
}
