// Package irfile writes compiled services as JSON files for the code
// generator.
package irfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/naming"
)

// ErrInvalidName is returned for service names that do not normalize to a
// single file name inside the output directory.
var ErrInvalidName = errors.New("service name is not a valid file name")

// Writer implements the usecase.ResultSink interface. Each service is
// written to <dir>/<service>.json.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger.With("component", "ir_writer")}
}

// Path returns the file a service is written to.
func (w *Writer) Path(service string) (string, error) {
	name := naming.Normalize(service)
	if !naming.IsFileName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, service)
	}
	return filepath.Join(w.dir, name+".json"), nil
}

// Write encodes result and replaces the service's file atomically.
func (w *Writer) Write(ctx context.Context, result *domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := w.Path(result.Service.Name)
	if err != nil {
		return fmt.Errorf("failed to write IR: %w", err)
	}
	name := naming.Normalize(result.Service.Name)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode IR for %s: %w", name, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}
	tmp, err := os.CreateTemp(w.dir, ".schemair-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		if writeErr != nil {
			return fmt.Errorf("failed to write temp file: %w", writeErr)
		}
		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move IR into place at %s: %w", path, err)
	}
	w.logger.Info("Wrote IR file.", slog.String("service", name), slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}

// Read decodes a Result previously written for service.
func (w *Writer) Read(service string) (*domain.Result, error) {
	path, err := w.Path(service)
	if err != nil {
		return nil, fmt.Errorf("failed to read IR file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IR file: %w", err)
	}
	var res domain.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode IR file: %w", err)
	}
	return &res, nil
}
