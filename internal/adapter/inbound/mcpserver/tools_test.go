package mcpserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/adapter/inbound/mcpserver"
	"github.com/i2y/schemair/internal/adapter/outbound/memrepo"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

type fakeCompiler struct {
	repo *memrepo.InMemoryServiceRepository
	got  usecase.SchemaSourceConfig
}

func (f *fakeCompiler) Execute(ctx context.Context, src usecase.SchemaSourceConfig) (*domain.Result, error) {
	f.got = src
	if src.URL == "broken.json" {
		return nil, fmt.Errorf("failed to convert: %w", domain.Malformed(domain.FormatOpenAPI, "no paths", nil))
	}
	res := &domain.Result{Service: domain.ServiceDefinition{Provider: src.Provider.Or(domain.ProviderAWS), Name: src.Service}}
	return res, f.repo.Save(ctx, res)
}

type recorder struct {
	tools map[string]server.ToolHandlerFunc
}

func (r *recorder) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	r.tools[tool.Name] = handler
}

func setup(t *testing.T) (*recorder, *fakeCompiler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	repo := memrepo.NewInMemoryServiceRepository(logger)
	compiler := &fakeCompiler{repo: repo}
	tools := mcpserver.NewTools(compiler, usecase.NewQueryServicesUseCase(repo, logger), logger)
	rec := &recorder{tools: map[string]server.ToolHandlerFunc{}}
	tools.Register(rec)
	return rec, compiler
}

func call(t *testing.T, rec *recorder, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	handler, ok := rec.tools[name]
	require.True(t, ok, "tool %s not registered", name)
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestTools_Register(t *testing.T) {
	rec, _ := setup(t)
	assert.Len(t, rec.tools, 3)
	for _, name := range []string{"list_services", "get_service", "compile_schema"} {
		assert.Contains(t, rec.tools, name)
	}

	srv := server.NewMCPServer("schemair", "test", server.WithToolCapabilities(false))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mcpserver.NewTools(&fakeCompiler{}, nil, logger).Register(srv)
}

func TestTools_CompileThenQuery(t *testing.T) {
	rec, compiler := setup(t)

	res := call(t, rec, "compile_schema", map[string]any{
		"url": "https://example.com/petstore.yaml", "format": "oas", "service": "petstore", "provider": "k8s",
	})
	assert.False(t, res.IsError, text(t, res))
	assert.Equal(t, domain.FormatOpenAPI, compiler.got.Format)
	assert.Equal(t, domain.ProviderKubernetes, compiler.got.Provider)

	res = call(t, rec, "list_services", nil)
	require.False(t, res.IsError)
	var summaries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "petstore", summaries[0]["name"])

	res = call(t, rec, "get_service", map[string]any{"name": "petstore"})
	require.False(t, res.IsError)
	var got domain.Result
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, domain.ProviderKubernetes, got.Service.Provider)
}

func TestTools_Errors(t *testing.T) {
	rec, _ := setup(t)

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		wantMsg string
	}{
		{name: "missing name", tool: "get_service", args: map[string]any{}, wantMsg: "argument 'name' is required"},
		{name: "unknown service", tool: "get_service", args: map[string]any{"name": "nope"}, wantMsg: "has not been compiled"},
		{name: "missing url", tool: "compile_schema", args: map[string]any{"format": "openapi"}, wantMsg: "invalid compile request"},
		{name: "bad provider", tool: "compile_schema", args: map[string]any{"url": "a.json", "provider": "ibm"}, wantMsg: "unknown provider"},
		{name: "malformed document", tool: "compile_schema", args: map[string]any{"url": "broken.json"}, wantMsg: "no paths"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, rec, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, text(t, res), tt.wantMsg)
		})
	}
}
