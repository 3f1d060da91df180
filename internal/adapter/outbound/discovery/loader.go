package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	discoveryapi "google.golang.org/api/discovery/v1"
	"google.golang.org/api/option"

	"github.com/i2y/schemair/internal/adapter/outbound/source"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// DirectoryScheme prefixes sources that name an API in the public discovery
// directory, as in "discovery://storage/v1".
const DirectoryScheme = "discovery://"

// Loader implements the usecase.SchemaLoader interface for discovery documents.
type Loader struct {
	fetcher  *source.Fetcher
	client   *http.Client
	endpoint string
	logger   *slog.Logger
}

// NewLoader creates a new discovery Loader. endpoint overrides the discovery
// directory service URL; empty means Google's public endpoint.
func NewLoader(client *http.Client, fetcher *source.Fetcher, endpoint string, logger *slog.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{
		fetcher:  fetcher,
		client:   client,
		endpoint: endpoint,
		logger:   logger.With("component", "discovery_loader"),
	}
}

// Load reads a discovery document from a file, a URL, or the discovery
// directory service.
func (l *Loader) Load(ctx context.Context, config usecase.SchemaSourceConfig) (domain.APISchema, error) {
	log := l.logger.With(slog.String("source", config.URL))
	log.Info("Loading discovery document.")

	if rest, ok := strings.CutPrefix(config.URL, DirectoryScheme); ok {
		return l.loadFromDirectory(ctx, config.URL, rest)
	}

	data, err := l.fetcher.Fetch(ctx, config)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to load discovery document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		log.Error("Failed to parse discovery document.", slog.Any("error", err))
		return domain.APISchema{}, domain.Malformed(domain.FormatDiscovery, config.URL, err)
	}
	log.Info("Successfully loaded discovery document.",
		slog.String("api", doc.Name),
		slog.Int("resource_count", len(doc.Resources)))
	return domain.APISchema{Source: config.URL, Format: domain.FormatDiscovery, RawData: data, ParsedData: doc}, nil
}

func (l *Loader) loadFromDirectory(ctx context.Context, src, apiVersion string) (domain.APISchema, error) {
	api, version, ok := strings.Cut(apiVersion, "/")
	if !ok || api == "" || version == "" {
		return domain.APISchema{}, fmt.Errorf("invalid discovery source %q, want %sapi/version", src, DirectoryScheme)
	}

	opts := []option.ClientOption{option.WithHTTPClient(l.client)}
	if l.endpoint != "" {
		opts = append(opts, option.WithEndpoint(l.endpoint))
	}
	svc, err := discoveryapi.NewService(ctx, opts...)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to create discovery client: %w", err)
	}
	doc, err := svc.Apis.GetRest(api, version).Context(ctx).Do()
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to fetch discovery document for %s/%s: %w", api, version, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.APISchema{}, fmt.Errorf("failed to encode discovery document: %w", err)
	}
	l.logger.Info("Fetched discovery document from directory.",
		slog.String("api", api), slog.String("version", version))
	return domain.APISchema{Source: src, Format: domain.FormatDiscovery, RawData: raw, ParsedData: doc}, nil
}
