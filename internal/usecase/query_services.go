package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i2y/schemair/internal/domain"
)

// QueryServicesUseCase provides read access to compiled services.
type QueryServicesUseCase struct {
	repository ServiceRepository
	logger     *slog.Logger
}

// NewQueryServicesUseCase creates a new QueryServicesUseCase.
func NewQueryServicesUseCase(repository ServiceRepository, logger *slog.Logger) *QueryServicesUseCase {
	return &QueryServicesUseCase{
		repository: repository,
		logger:     logger.With("usecase", "QueryServices"),
	}
}

// List retrieves all compiled services currently stored in the repository.
func (uc *QueryServicesUseCase) List(ctx context.Context) ([]domain.ServiceDefinition, error) {
	uc.logger.Debug("Listing services.")
	services, err := uc.repository.List(ctx)
	if err != nil {
		uc.logger.Error("Failed to list services from repository.", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list services from repository: %w", err)
	}
	uc.logger.Debug("Listed services.", slog.Int("count", len(services)))
	return services, nil
}

// Get retrieves the compiled result of one service. It returns an error
// matching ErrServiceNotFound when no such service was compiled.
func (uc *QueryServicesUseCase) Get(ctx context.Context, name string) (*domain.Result, error) {
	result, err := uc.repository.FindByName(ctx, name)
	if err != nil {
		uc.logger.Warn("Failed to find service.", slog.String("service", name), slog.Any("error", err))
		return nil, fmt.Errorf("failed to find service %s: %w", name, err)
	}
	return result, nil
}
