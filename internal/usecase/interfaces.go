package usecase

import (
	"context"
	"errors"

	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrServiceNotFound   = errors.New("service not found")
	ErrUnsupportedFormat = errors.New("unsupported schema format")
)

// --- Schema Source Related ---

// SchemaSourceConfig describes one API description to compile.
type SchemaSourceConfig struct {
	URL    string
	Format domain.SchemaFormat
	// Service and Version name the resulting ServiceDefinition.
	Service  string
	Version  string
	Provider domain.Provider
	Headers  map[string]string
	// ImportPaths are searched for imports of .proto sources.
	ImportPaths []string
}

// SchemaLoader loads and deserializes a document of one format. Loading is
// the only I/O in a compilation; conversion never touches the network.
type SchemaLoader interface {
	Load(ctx context.Context, source SchemaSourceConfig) (domain.APISchema, error)
}

// SchemaConverter compiles a loaded document into the IR.
type SchemaConverter interface {
	Convert(schema domain.APISchema, opts convert.Options) (*domain.Result, error)
}

// ServiceRepository stores compiled services.
// Implementations could range from in-memory stores to persistent databases.
type ServiceRepository interface {
	// Save stores a compiled result, replacing any service of the same name.
	Save(ctx context.Context, result *domain.Result) error

	// List retrieves all stored services, ordered by name.
	List(ctx context.Context) ([]domain.ServiceDefinition, error)

	// FindByName retrieves a compiled result by service name.
	FindByName(ctx context.Context, name string) (*domain.Result, error)
}

// ResultSink receives every successfully compiled result, e.g. to hand it
// to the code generator as a file.
type ResultSink interface {
	Write(ctx context.Context, result *domain.Result) error
}
