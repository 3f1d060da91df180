package openapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Common OpenAPI document paths used by various frameworks and platforms.
var commonOpenAPIPaths = []string{
	"/openapi.json",            // FastAPI default
	"/openapi/v2",              // Kubernetes API server (Swagger 2.0)
	"/docs/openapi.json",       // Alternative FastAPI path
	"/swagger.json",            // Swagger/OpenAPI 2.0
	"/v3/api-docs",             // SpringDoc OpenAPI 3.0
	"/api-docs",                // SpringFox
	"/api/openapi.json",        // Custom API prefix
	"/api/v1/openapi.json",     // Versioned API
	"/swagger/v1/swagger.json", // .NET default
}

// AutoDiscoverer finds an OpenAPI document below a base URL.
type AutoDiscoverer struct {
	client *http.Client
	logger *slog.Logger
}

// NewAutoDiscoverer creates a new OpenAPI document auto-discoverer.
func NewAutoDiscoverer(client *http.Client, logger *slog.Logger) *AutoDiscoverer {
	if client == nil {
		client = http.DefaultClient
	}
	return &AutoDiscoverer{
		client: client,
		logger: logger.With("component", "openapi_autodiscoverer"),
	}
}

// looksLikeDocument reports whether source already names a document rather
// than a service base URL.
func looksLikeDocument(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasSuffix(lower, ".json") ||
		strings.HasSuffix(lower, ".yaml") ||
		strings.HasSuffix(lower, ".yml") ||
		strings.Contains(lower, "openapi") ||
		strings.Contains(lower, "swagger") ||
		strings.Contains(lower, "api-docs")
}

// ResolveSchemaSource returns source unchanged when it already names a
// document, and otherwise tries the common document paths below it. When
// nothing is found the original source is returned.
func (d *AutoDiscoverer) ResolveSchemaSource(ctx context.Context, source string, headers map[string]string) string {
	log := d.logger.With(slog.String("source", source))
	if looksLikeDocument(source) {
		log.Debug("Source appears to be a direct document URL.")
		return source
	}

	log.Info("Source appears to be a base URL, attempting auto-discovery.")
	found, err := d.DiscoverSchema(ctx, source, headers)
	if err != nil {
		log.Warn("Auto-discovery failed, using original source.", slog.Any("error", err))
		return source
	}
	return found
}

// DiscoverSchema tries the common document paths below baseURL.
func (d *AutoDiscoverer) DiscoverSchema(ctx context.Context, baseURL string, headers map[string]string) (string, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		return "", fmt.Errorf("base URL must include scheme (http:// or https://)")
	}
	base := strings.TrimSuffix(parsedURL.String(), "/")

	for _, path := range commonOpenAPIPaths {
		schemaURL := base + path
		ok, err := d.checkOpenAPIEndpoint(ctx, schemaURL, headers)
		if ok {
			d.logger.Info("Found OpenAPI document.", slog.String("url", schemaURL))
			return schemaURL, nil
		}
		if err != nil {
			d.logger.Debug("Failed to check endpoint.", slog.String("url", schemaURL), slog.Any("error", err))
		}
	}
	return "", fmt.Errorf("could not find OpenAPI document at %s", baseURL)
}

// checkOpenAPIEndpoint reports whether schemaURL answers with a JSON document.
func (d *AutoDiscoverer) checkOpenAPIEndpoint(ctx context.Context, schemaURL string, headers map[string]string) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, schemaURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	contentType := resp.Header.Get("Content-Type")
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "application/vnd.oai.openapi+json"), nil
}
