package usecase

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/naming"
)

// ErrInvalidRequest is returned for compile requests that fail validation.
var ErrInvalidRequest = errors.New("invalid compile request")

var (
	requestValidator     *validator.Validate
	requestValidatorOnce sync.Once
)

// CompileRequest is the wire form of a compile call, shared by the inbound
// adapters. Format and provider are names accepted by
// domain.ParseSchemaFormat and domain.ParseProvider.
type CompileRequest struct {
	URL      string            `json:"url" schema:"url" validate:"required"`
	Format   string            `json:"format,omitempty" schema:"format"`
	Service  string            `json:"service,omitempty" schema:"service" validate:"omitempty,max=128,servicename"`
	Version  string            `json:"version,omitempty" schema:"version"`
	Provider string            `json:"provider,omitempty" schema:"provider"`
	Headers  map[string]string `json:"headers,omitempty" schema:"-"`
}

// Source validates r and converts it into a SchemaSourceConfig.
func (r CompileRequest) Source() (SchemaSourceConfig, error) {
	requestValidatorOnce.Do(func() {
		requestValidator = validator.New()
		_ = requestValidator.RegisterValidation("servicename", validServiceName)
	})
	if err := requestValidator.Struct(r); err != nil {
		return SchemaSourceConfig{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	src := SchemaSourceConfig{
		URL:     r.URL,
		Service: r.Service,
		Version: r.Version,
		Headers: r.Headers,
	}
	if r.Format != "" {
		f, err := domain.ParseSchemaFormat(r.Format)
		if err != nil {
			return SchemaSourceConfig{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		src.Format = f
	}
	p, err := domain.ParseProvider(r.Provider)
	if err != nil {
		return SchemaSourceConfig{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	src.Provider = p
	return src, nil
}

// validServiceName requires the normalized name to be usable as an IR file
// name, so it cannot point outside the output directory.
func validServiceName(fl validator.FieldLevel) bool {
	return naming.IsFileName(naming.Normalize(fl.Field().String()))
}
