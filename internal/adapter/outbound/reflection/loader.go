package reflection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// Loader implements the usecase.SchemaLoader interface for registered clients.
type Loader struct {
	registry *Registry
	logger   *slog.Logger
}

// NewLoader creates a new reflection Loader.
func NewLoader(registry *Registry, logger *slog.Logger) *Loader {
	return &Loader{registry: registry, logger: logger.With("component", "reflection_loader")}
}

// Load snapshots the client named by config.URL ("reflect://name" or the
// bare name).
func (l *Loader) Load(_ context.Context, config usecase.SchemaSourceConfig) (domain.APISchema, error) {
	name := strings.TrimPrefix(config.URL, Scheme)
	snap, err := l.registry.Lookup(name)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to load client snapshot: %w", err)
	}
	l.logger.Info("Loaded client snapshot.",
		slog.String("client", name),
		slog.String("type", snap.Client.String()),
		slog.Int("method_count", snap.Client.NumMethod()))
	return domain.APISchema{
		Source:     config.URL,
		Format:     domain.FormatReflection,
		RawData:    signature(snap.Client),
		ParsedData: snap,
	}, nil
}
