package memrepo_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/adapter/outbound/memrepo"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

func newTestRepo(t *testing.T) *memrepo.InMemoryServiceRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return memrepo.NewInMemoryServiceRepository(logger)
}

func resultFor(name, version string) *domain.Result {
	return &domain.Result{Service: domain.ServiceDefinition{Provider: domain.ProviderAWS, Name: name, SDKVersion: version}}
}

func TestInMemoryServiceRepository_SaveAndList(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		inResults   []*domain.Result
		wantSaveErr bool
		wantNames   []string
	}{
		{
			name:      "Save single service",
			inResults: []*domain.Result{resultFor("s3", "1")},
			wantNames: []string{"s3"},
		},
		{
			name:      "Save multiple services lists them sorted",
			inResults: []*domain.Result{resultFor("storage", "v1"), resultFor("dynamodb", "1"), resultFor("petstore", "1")},
			wantNames: []string{"dynamodb", "petstore", "storage"},
		},
		{
			name:      "Save replaces service of the same name",
			inResults: []*domain.Result{resultFor("s3", "1"), resultFor("s3", "2")},
			wantNames: []string{"s3"},
		},
		{
			name:        "Save rejects unnamed service",
			inResults:   []*domain.Result{resultFor("", "1")},
			wantSaveErr: true,
			wantNames:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)
			var saveErr error
			for _, res := range tt.inResults {
				if err := repo.Save(ctx, res); err != nil {
					saveErr = err
				}
			}
			if tt.wantSaveErr {
				assert.Error(t, saveErr)
			} else {
				require.NoError(t, saveErr)
			}

			list, err := repo.List(ctx)
			require.NoError(t, err)
			names := make([]string, 0, len(list))
			for _, svc := range list {
				names = append(names, svc.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestInMemoryServiceRepository_FindByName(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Save(ctx, resultFor("s3", "1")))
	require.NoError(t, repo.Save(ctx, resultFor("s3", "2")))

	got, err := repo.FindByName(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Service.SDKVersion)

	_, err = repo.FindByName(ctx, "missing")
	assert.ErrorIs(t, err, usecase.ErrServiceNotFound)
}

func TestInMemoryServiceRepository_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Save(ctx, resultFor(name, "1")))
			_, _ = repo.List(ctx)
		}()
	}
	wg.Wait()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
