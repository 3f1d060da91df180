// Package source reads raw schema documents from URLs or local files.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/i2y/schemair/internal/adapter/outbound/github"
	"github.com/i2y/schemair/internal/usecase"
)

// Fetcher retrieves document bytes over HTTP(S), from GitHub or from the
// local disk.
type Fetcher struct {
	httpClient *http.Client
	github     *github.Client
	logger     *slog.Logger
}

// NewFetcher creates a new Fetcher.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		httpClient: client,
		logger:     logger.With("component", "source_fetcher"),
	}
}

// WithGitHub enables github:// sources.
func (f *Fetcher) WithGitHub(c *github.Client) *Fetcher {
	f.github = c
	return f
}

// IsRemote reports whether src is an http or https URL.
func IsRemote(src string) bool {
	u, err := url.ParseRequestURI(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// Fetch returns the bytes of config.URL. Headers are sent for remote
// sources and ignored for local files.
func (f *Fetcher) Fetch(ctx context.Context, config usecase.SchemaSourceConfig) ([]byte, error) {
	src := config.URL
	log := f.logger.With(slog.String("source", src))

	if github.IsGitHubURL(src) {
		if f.github == nil {
			return nil, fmt.Errorf("failed to fetch %s: GitHub sources are not enabled", src)
		}
		log.Debug("Fetching from GitHub.")
		return f.github.FetchFile(ctx, src)
	}

	if !IsRemote(src) {
		log.Debug("Assuming local file path.")
		data, err := os.ReadFile(strings.TrimPrefix(src, "file://"))
		if err != nil {
			log.Error("Failed to read schema from file.", slog.Any("error", err))
			return nil, fmt.Errorf("failed to read schema from file %s: %w", src, err)
		}
		return data, nil
	}

	log.Debug("Fetching from URL.", slog.Int("header_count", len(config.Headers)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", src, err)
	}
	for key, value := range config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		log.Error("Failed to fetch schema from URL.", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch schema from URL %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("Received non-OK status code from URL.", slog.String("status", resp.Status))
		return nil, fmt.Errorf("failed to fetch schema from URL %s: status %s", src, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", src, err)
	}
	return data, nil
}
