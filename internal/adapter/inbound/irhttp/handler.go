// Package irhttp exposes the compiler over a small admin HTTP API.
package irhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/schema"

	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

var schemaDecoder = schema.NewDecoder()

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// Compiler compiles one source. *usecase.CompileSchemaUseCase implements it.
type Compiler interface {
	Execute(ctx context.Context, source usecase.SchemaSourceConfig) (*domain.Result, error)
}

// ServiceQuery reads compiled services. *usecase.QueryServicesUseCase
// implements it.
type ServiceQuery interface {
	List(ctx context.Context) ([]domain.ServiceDefinition, error)
	Get(ctx context.Context, name string) (*domain.Result, error)
}

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	compiler Compiler
	query    ServiceQuery
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(compiler Compiler, query ServiceQuery, logger *slog.Logger) *Handlers {
	return &Handlers{
		compiler: compiler,
		query:    query,
		logger:   logger.With("component", "irhttp_handler"),
	}
}

// RegisterRoutes sets up the admin routes on mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /compile", h.handleCompile)
	mux.HandleFunc("GET /services", h.handleListServices)
	mux.HandleFunc("GET /services/{name}", h.handleGetService)
}

// ServiceSummary is one entry of the GET /services listing.
type ServiceSummary struct {
	Name        string          `json:"name"`
	Provider    domain.Provider `json:"provider"`
	SDKVersion  string          `json:"sdk_version,omitempty"`
	Resources   int             `json:"resources"`
	DataSources int             `json:"data_sources"`
}

// handleCompile implements POST /compile. Parameters come from the query
// string; a JSON body, when present, fills in whatever the query leaves out.
func (h *Handlers) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req usecase.CompileRequest
	if r.Body != nil && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("Failed to decode compile request body.", slog.Any("error", err))
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	if err := schemaDecoder.Decode(&req, r.URL.Query()); err != nil {
		h.logger.Warn("Failed to decode compile query.", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid query: %v", err))
		return
	}

	src, err := req.Source()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("Received compile request.", slog.String("source", src.URL))
	result, err := h.compiler.Execute(r.Context(), src)
	if err != nil {
		h.logger.Error("Failed to compile schema.", slog.String("source", src.URL), slog.Any("error", err))
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListServices implements GET /services.
func (h *Handlers) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.query.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summaries := make([]ServiceSummary, 0, len(services))
	for _, svc := range services {
		summaries = append(summaries, ServiceSummary{
			Name:        svc.Name,
			Provider:    svc.Provider,
			SDKVersion:  svc.SDKVersion,
			Resources:   len(svc.Resources),
			DataSources: len(svc.DataSources),
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleGetService implements GET /services/{name}.
func (h *Handlers) handleGetService(w http.ResponseWriter, r *http.Request) {
	result, err := h.query.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrServiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrUnsupportedFormat), errors.Is(err, usecase.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDocumentMalformed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
