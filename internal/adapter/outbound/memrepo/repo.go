package memrepo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

// InMemoryServiceRepository provides an in-memory implementation of the ServiceRepository.
// NOTE: This implementation is not persistent and data will be lost on restart.
type InMemoryServiceRepository struct {
	mu       sync.RWMutex
	services map[string]*domain.Result // Map service name to its compiled result
	logger   *slog.Logger
}

// NewInMemoryServiceRepository creates a new in-memory repository.
func NewInMemoryServiceRepository(logger *slog.Logger) *InMemoryServiceRepository {
	return &InMemoryServiceRepository{
		services: make(map[string]*domain.Result),
		logger:   logger.With("component", "mem_repo"),
	}
}

// Save stores a compiled result, replacing any earlier result for the same
// service name.
func (r *InMemoryServiceRepository) Save(_ context.Context, result *domain.Result) error {
	if result == nil || result.Service.Name == "" {
		r.logger.Error("Refusing to save result without service name.")
		return fmt.Errorf("save failed: result has no service name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.services[result.Service.Name]
	r.services[result.Service.Name] = result
	r.logger.Info("Saved compiled service.",
		slog.String("service", result.Service.Name),
		slog.Bool("replaced", replaced),
		slog.Int("total_services", len(r.services)))
	return nil
}

// List returns all stored services ordered by name.
func (r *InMemoryServiceRepository) List(_ context.Context) ([]domain.ServiceDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.ServiceDefinition, 0, len(r.services))
	for _, res := range r.services {
		list = append(list, res.Service)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	r.logger.Debug("Listed services from repository.", slog.Int("count", len(list)))
	return list, nil
}

// FindByName retrieves the compiled result of a service.
func (r *InMemoryServiceRepository) FindByName(_ context.Context, name string) (*domain.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.services[name]
	if !ok {
		r.logger.Warn("Service not found.", slog.String("service", name))
		return nil, fmt.Errorf("%w: %s", usecase.ErrServiceNotFound, name)
	}
	r.logger.Debug("Found service.", slog.String("service", name))
	return res, nil
}
