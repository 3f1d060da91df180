// Package mcpserver exposes compiled services as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/i2y/schemair/internal/adapter/inbound/irhttp"
	"github.com/i2y/schemair/internal/usecase"
)

// ToolRegistrar is the part of *server.MCPServer the tools need.
type ToolRegistrar interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// Tools implements the list_services, get_service and compile_schema tools.
type Tools struct {
	compiler irhttp.Compiler
	query    irhttp.ServiceQuery
	logger   *slog.Logger
}

// NewTools creates the tool handlers.
func NewTools(compiler irhttp.Compiler, query irhttp.ServiceQuery, logger *slog.Logger) *Tools {
	return &Tools{compiler: compiler, query: query, logger: logger.With("component", "mcp_tools")}
}

// Register adds every tool to srv.
func (t *Tools) Register(srv ToolRegistrar) {
	srv.AddTool(mcp.NewTool("list_services",
		mcp.WithDescription("List the compiled services with their resource counts."),
	), t.ListServices)

	srv.AddTool(mcp.NewTool("get_service",
		mcp.WithDescription("Return the compiled intermediate representation of one service, with its warnings."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Service name as listed by list_services.")),
	), t.GetService)

	srv.AddTool(mcp.NewTool("compile_schema",
		mcp.WithDescription("Compile an API description (Smithy, OpenAPI, discovery, protobuf or a registered Go client) into the intermediate representation."),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL, file path, grpc:// target, discovery://api/version or reflect://client.")),
		mcp.WithString("format", mcp.Description("Source format; detected from the URL when omitted."),
			mcp.Enum("smithy", "openapi", "discovery", "proto", "reflection")),
		mcp.WithString("service", mcp.Description("Service name; derived from the URL when omitted.")),
		mcp.WithString("version", mcp.Description("SDK version recorded in the result.")),
		mcp.WithString("provider", mcp.Description("Provider hint: aws, gcp, azure or kubernetes.")),
	), t.CompileSchema)
	t.logger.Info("Registered MCP tools.", slog.Int("count", 3))
}

// ListServices handles the list_services tool.
func (t *Tools) ListServices(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	services, err := t.query.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list services: %v", err)), nil
	}
	summaries := make([]irhttp.ServiceSummary, 0, len(services))
	for _, svc := range services {
		summaries = append(summaries, irhttp.ServiceSummary{
			Name:        svc.Name,
			Provider:    svc.Provider,
			SDKVersion:  svc.SDKVersion,
			Resources:   len(svc.Resources),
			DataSources: len(svc.DataSources),
		})
	}
	return jsonResult(summaries)
}

// GetService handles the get_service tool.
func (t *Tools) GetService(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := bindArguments(req, &args); err != nil || args.Name == "" {
		return mcp.NewToolResultError("argument 'name' is required"), nil
	}
	result, err := t.query.Get(ctx, args.Name)
	if err != nil {
		if errors.Is(err, usecase.ErrServiceNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("service %q has not been compiled", args.Name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

// CompileSchema handles the compile_schema tool.
func (t *Tools) CompileSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var creq usecase.CompileRequest
	if err := bindArguments(req, &creq); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	src, err := creq.Source()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t.logger.Info("Compiling schema from MCP request.", slog.String("source", src.URL))
	result, err := t.compiler.Execute(ctx, src)
	if err != nil {
		t.logger.Error("Failed to compile schema.", slog.String("source", src.URL), slog.Any("error", err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

// bindArguments decodes the tool arguments into v through their JSON form.
func bindArguments(req mcp.CallToolRequest, v any) error {
	data, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
