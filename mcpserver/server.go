package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/dataquery/analysis"
	"github.com/isdmx/dataquery/config"
	"github.com/isdmx/dataquery/dataset"
)

// Tool names
const (
	ToolRunScript = "run_analysis_script"
	ToolAsk       = "ask_dataset"
	ToolDescribe  = "describe_dataset"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	service   *analysis.Service
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, service *analysis.Service) (*MCPServer, error) {
	s := &MCPServer{
		config:  cfg,
		logger:  logger,
		service: service,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("sandbox.backend", s.config.Sandbox.Backend),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.grace_ms", s.config.Sandbox.GraceMs),
		zap.Int("sandbox.max_output_kb", s.config.Sandbox.MaxOutputKB),
		zap.String("generator.model", s.config.Generator.Model),
		zap.Bool("history.enabled", s.config.History.Enabled),
	)

	s.mcpServer = server.NewMCPServer("dataquery", "Question answering over tabular data")

	s.registerRunScriptTool()
	s.registerAskTool()
	s.registerDescribeTool()

	return s, nil
}

var csvProperty = map[string]any{
	"type":        "string",
	"description": "Dataset as CSV text with a header row",
}

func (s *MCPServer) registerRunScriptTool() {
	tool := mcp.Tool{
		Name:        ToolRunScript,
		Description: "Run a JavaScript analysis script against a dataset bound as df",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"csv": csvProperty,
				"script": map[string]any{
					"type":        "string",
					"description": "Script to execute; print() output is returned",
				},
			},
			Required: []string{"csv", "script"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunScript)
}

func (s *MCPServer) registerAskTool() {
	tool := mcp.Tool{
		Name:        ToolAsk,
		Description: "Answer a natural-language question about a dataset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"csv": csvProperty,
				"question": map[string]any{
					"type":        "string",
					"description": "Question about the data",
				},
			},
			Required: []string{"csv", "question"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleAsk)
}

func (s *MCPServer) registerDescribeTool() {
	tool := mcp.Tool{
		Name:        ToolDescribe,
		Description: "Describe the columns, types and row count of a dataset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"csv": csvProperty,
			},
			Required: []string{"csv"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleDescribe)
}

// handleRunScript handles the run_analysis_script tool
func (s *MCPServer) handleRunScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	frame, err := s.frameArgument(request)
	if err != nil {
		return nil, err
	}

	script, err := request.RequireString("script")
	if err != nil {
		return nil, fmt.Errorf("script parameter is required: %w", err)
	}

	s.logger.Info("script execution requested", zap.Int("rows", frame.Len()), zap.Int("script_bytes", len(script)))

	report := s.service.Run(ctx, script, frame)
	return textResult(report.Message(), report.Outcome.Failed()), nil
}

// handleAsk handles the ask_dataset tool
func (s *MCPServer) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	frame, err := s.frameArgument(request)
	if err != nil {
		return nil, err
	}

	question, err := request.RequireString("question")
	if err != nil {
		return nil, fmt.Errorf("question parameter is required: %w", err)
	}

	s.logger.Info("question received", zap.String("question", question), zap.Int("rows", frame.Len()))

	report, err := s.service.Ask(ctx, question, frame)
	if err != nil {
		s.logger.Error("analysis failed", zap.Error(err), zap.String("question", question))
		return textResult(fmt.Sprintf("Analysis failed: %v", err), true), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Relevant column: %s\n\nGenerated script:\n%s\n\nResult:\n%s", report.Column, report.Script, report.Message())
	return textResult(b.String(), report.Outcome.Failed()), nil
}

// handleDescribe handles the describe_dataset tool
func (s *MCPServer) handleDescribe(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	frame, err := s.frameArgument(request)
	if err != nil {
		return nil, err
	}

	schemaJSON, err := json.Marshal(frame.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return textResult(string(schemaJSON), false), nil
}

// frameArgument parses the inline csv argument. The server never opens
// caller-supplied paths.
func (s *MCPServer) frameArgument(request mcp.CallToolRequest) (*dataset.Frame, error) {
	csvText, err := request.RequireString("csv")
	if err != nil {
		return nil, fmt.Errorf("csv parameter is required: %w", err)
	}

	frame, err := dataset.ReadCSV(strings.NewReader(csvText))
	if err != nil {
		s.logger.Warn("rejected csv argument", zap.Error(err))
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return frame, nil
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: isError,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
