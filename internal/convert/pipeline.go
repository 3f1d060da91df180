package convert

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/i2y/schemair/internal/domain"
)

// Run converts the document wrapped by a into a ServiceDefinition.
//
// It fails only when the document is structurally unusable, with an error
// matching domain.ErrDocumentMalformed, or when the assembled service breaks
// construction invariants (domain.ErrInvalidIR). Every other problem is
// reported as a warning on the Result.
func Run(a Adapter, opts Options) (*domain.Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With("component", "convert", slog.String("format", string(a.Format())))

	// 1. Enumerate
	ops, err := a.Enumerate()
	if err != nil {
		if errors.Is(err, domain.ErrDocumentMalformed) {
			return nil, err
		}
		return nil, domain.Malformed(a.Format(), "failed to enumerate operations", err)
	}
	log.Debug("Enumerated operations.", slog.Int("count", len(ops)))

	// 2. Bucket
	buckets, warnings := BucketOperations(ops, log)
	log.Debug("Bucketed operations.", slog.Int("buckets", len(buckets)))

	// 3. Extract, possibly in parallel. Results are gathered by index so the
	// output does not depend on scheduling.
	results := make([]extracted, len(buckets))
	var g errgroup.Group
	g.SetLimit(opts.Parallelism)
	for i, b := range buckets {
		g.Go(func() error {
			results[i] = extract(a, b, opts)
			return nil
		})
	}
	_ = g.Wait()

	// 4. Assemble
	return assemble(a, opts, results, warnings, log)
}

func assemble(a Adapter, opts Options, results []extracted, warnings []domain.Warning, log *slog.Logger) (*domain.Result, error) {
	svc := domain.ServiceDefinition{
		Provider:    a.Provider(opts.ProviderHint),
		Name:        opts.ServiceName,
		SDKVersion:  opts.Version,
		Resources:   []domain.ResourceDefinition{},
		DataSources: []domain.DataSourceDefinition{},
	}
	for _, r := range results {
		warnings = append(warnings, r.warnings...)
		if !r.resource.HasCRUD() {
			log.Debug("Dropping resource without operations.", slog.String("resource", r.resource.Name))
			continue
		}
		svc.Resources = append(svc.Resources, r.resource)
		if r.dataSource != nil {
			svc.DataSources = append(svc.DataSources, *r.dataSource)
		}
	}
	if len(svc.Resources) == 0 {
		warnings = append(warnings, domain.Warning{
			Kind:    domain.WarningNoResourcesFound,
			Message: "no classifiable operations found in document",
		})
	}

	if err := domain.ValidateService(&svc); err != nil {
		return nil, fmt.Errorf("failed to assemble %s service %q: %w", a.Format(), opts.ServiceName, err)
	}

	log.Debug("Assembled service.",
		slog.String("service", svc.Name),
		slog.Int("resources", len(svc.Resources)),
		slog.Int("warnings", len(warnings)))
	return &domain.Result{Service: svc, Warnings: warnings}, nil
}
