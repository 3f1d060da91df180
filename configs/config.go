package configs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i2y/schemair/internal/adapter/outbound/github"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "schemair"

// Source is one API description to compile. In YAML it is either a bare
// URL string or a mapping with the fields below.
type Source struct {
	URL      string            `yaml:"url"`
	Format   string            `yaml:"format,omitempty"`
	Service  string            `yaml:"service,omitempty"`
	Version  string            `yaml:"version,omitempty"`
	Provider string            `yaml:"provider,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	// ImportPaths are searched for imports of .proto sources.
	ImportPaths []string `yaml:"import_paths,omitempty"`
	// Server is a gRPC endpoint whose reflection service describes the API.
	// When set it replaces URL.
	Server string `yaml:"server,omitempty"`
}

// UnmarshalYAML accepts both the string and the mapping form.
func (s *Source) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.URL = node.Value
		return nil
	}
	type plain Source
	return node.Decode((*plain)(s))
}

// SourceConfig validates s and converts it into a usecase.SchemaSourceConfig.
func (s Source) SourceConfig() (usecase.SchemaSourceConfig, error) {
	cfg := usecase.SchemaSourceConfig{
		URL:         s.URL,
		Service:     s.Service,
		Version:     s.Version,
		Headers:     s.Headers,
		ImportPaths: s.ImportPaths,
	}
	if s.Server != "" {
		cfg.URL = "grpc://" + strings.TrimPrefix(s.Server, "grpc://")
		cfg.Format = domain.FormatProto
	}
	if cfg.URL == "" {
		return usecase.SchemaSourceConfig{}, fmt.Errorf("source has neither url nor server")
	}
	if s.Format != "" {
		f, err := domain.ParseSchemaFormat(s.Format)
		if err != nil {
			return usecase.SchemaSourceConfig{}, fmt.Errorf("source %s: %w", cfg.URL, err)
		}
		cfg.Format = f
	}
	p, err := domain.ParseProvider(s.Provider)
	if err != nil {
		return usecase.SchemaSourceConfig{}, fmt.Errorf("source %s: %w", cfg.URL, err)
	}
	cfg.Provider = p
	return cfg, nil
}

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	Sources []Source `yaml:"sources"`
}

// Config holds the final application configuration, merged from file and environment variables.
// Fields are loaded from environment variables with the prefix "SCHEMAIR_".
type Config struct {
	// Config File Path; empty means no source list.
	ConfigFilePath string `envconfig:"CONFIG_FILE"`

	// File-loaded fields
	Sources []Source `ignored:"true"`

	ListenAddr         string        `envconfig:"LISTEN_ADDR" default:":8080"`
	AdminListenAddr    string        `envconfig:"ADMIN_LISTEN_ADDR" default:":8081"`
	OutputDir          string        `envconfig:"OUTPUT_DIR"`
	MaxResolutionDepth int           `envconfig:"MAX_RESOLUTION_DEPTH" default:"32"`
	Parallelism        int           `envconfig:"PARALLELISM" default:"4"`
	CacheSize          int           `envconfig:"CACHE_SIZE" default:"64"`
	DiscoveryEndpoint  string        `envconfig:"DISCOVERY_ENDPOINT"`
	HTTPClientTimeout  time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ServerReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	ServerWriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ServerIdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`

	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string `envconfig:"LOG_LEVEL" default:"info"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// SourceConfigs converts the configured sources, failing on the first
// invalid one.
func (c *Config) SourceConfigs() ([]usecase.SchemaSourceConfig, error) {
	out := make([]usecase.SchemaSourceConfig, 0, len(c.Sources))
	for i, s := range c.Sources {
		cfg, err := s.SourceConfig()
		if err != nil {
			return nil, fmt.Errorf("invalid source #%d: %w", i+1, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Load reads a .env file if present, then the environment, then the YAML
// file named by SCHEMAIR_CONFIG_FILE, which may be a github:// URL.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if cfg.ConfigFilePath == "" {
		slog.Info("No config file path specified (SCHEMAIR_CONFIG_FILE), using env vars only.")
		return &cfg, nil
	}

	data, err := readConfigFile(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	var fileCfg FileConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", cfg.ConfigFilePath, err)
	}
	cfg.Sources = fileCfg.Sources
	slog.Info("Loaded configuration file.", slog.String("path", cfg.ConfigFilePath), slog.Int("sources", len(cfg.Sources)))
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	if github.IsGitHubURL(path) {
		data, err := github.NewClient(nil, slog.Default()).FetchFile(context.Background(), path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from GitHub '%s': %w", path, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return data, nil
}
