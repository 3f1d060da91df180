package configs_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/configs"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

const sourcesYAML = `
sources:
  - models/s3.json
  - url: https://example.com/petstore.yaml
    format: swagger
    service: petstore
    provider: k8s
    headers:
      Authorization: Bearer token
  - url: protos/library.proto
    import_paths: [third_party/googleapis]
  - server: localhost:50051
    service: greeter
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemair.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sourcesYAML), 0o644))
	t.Setenv("SCHEMAIR_CONFIG_FILE", path)
	t.Setenv("SCHEMAIR_PARALLELISM", "8")
	t.Setenv("SCHEMAIR_HTTP_CLIENT_TIMEOUT", "2s")
	t.Setenv("SCHEMAIR_LOG_LEVEL", "debug")

	cfg, err := configs.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.Equal(t, 32, cfg.MaxResolutionDepth)
	assert.Equal(t, 2*time.Second, cfg.HTTPClientTimeout)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, slog.LevelDebug, cfg.ParsedLogLevel())
	require.Len(t, cfg.Sources, 4)

	sources, err := cfg.SourceConfigs()
	require.NoError(t, err)
	assert.Equal(t, []usecase.SchemaSourceConfig{
		{URL: "models/s3.json"},
		{
			URL: "https://example.com/petstore.yaml", Format: domain.FormatOpenAPI, Service: "petstore",
			Provider: domain.ProviderKubernetes, Headers: map[string]string{"Authorization": "Bearer token"},
		},
		{URL: "protos/library.proto", ImportPaths: []string{"third_party/googleapis"}},
		{URL: "grpc://localhost:50051", Format: domain.FormatProto, Service: "greeter"},
	}, sources)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("SCHEMAIR_CONFIG_FILE", "")
	cfg, err := configs.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Sources)
	assert.Equal(t, slog.LevelInfo, cfg.ParsedLogLevel())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("SCHEMAIR_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := configs.Load()
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sources: [\n"), 0o644))
		t.Setenv("SCHEMAIR_CONFIG_FILE", path)
		_, err := configs.Load()
		assert.Error(t, err)
	})
	t.Run("bad env", func(t *testing.T) {
		t.Setenv("SCHEMAIR_CONFIG_FILE", "")
		t.Setenv("SCHEMAIR_PARALLELISM", "many")
		_, err := configs.Load()
		assert.Error(t, err)
	})
}

func TestSource_SourceConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   configs.Source
	}{
		{name: "empty", in: configs.Source{}},
		{name: "unknown format", in: configs.Source{URL: "a.graphql", Format: "graphql"}},
		{name: "unknown provider", in: configs.Source{URL: "a.json", Provider: "ibm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.SourceConfig()
			assert.Error(t, err)
		})
	}
}
