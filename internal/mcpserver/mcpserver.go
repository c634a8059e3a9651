// Package mcpserver exposes the supervisor pipeline's four public
// operations, plus execute, as MCP tools over stdio, the same way the teacher's server
// package exposes its own reasoning tools: one mcp.AddTool registration
// per operation, a small request struct decoded from the tool call, and a
// JSON-formatted response.
package mcpserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"routersupervisor/internal/apierr"
	"routersupervisor/internal/catalog"
	"routersupervisor/internal/firewall"
	"routersupervisor/internal/model"
	"routersupervisor/internal/streaming"
	"routersupervisor/internal/supervisor"
)

// Server adapts a *supervisor.Pipeline to the MCP tool surface.
type Server struct {
	pipeline *supervisor.Pipeline
}

// New constructs a Server over an already-wired Pipeline.
func New(pipeline *supervisor.Pipeline) *Server {
	return &Server{pipeline: pipeline}
}

// RegisterTools registers the router's five MCP tools (the four public
// operations of spec.md plus the explicit execute call the Open Question
// 4 design decision requires; see DESIGN.md).
func (s *Server) RegisterTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "set_goal",
		Description: "Submit a natural-language goal for a session; matches it to a workflow and resolves its parameters",
	}, s.handleSetGoal)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "execute",
		Description: "Expand a session's ready goal into a firewall-validated tool-call list",
	}, s.handleExecute)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "process_call",
		Description: "Intercept a single tool call and run it through the override/firewall rules",
	}, s.handleProcessCall)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "import_workflow",
		Description: "Import a single workflow definition from inline YAML or JSON content",
	}, s.handleImportWorkflow)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "get_status",
		Description: "Report registry, vector-store, and telemetry health",
	}, s.handleGetStatus)
}

// SetGoalRequest is set_goal's input.
type SetGoalRequest struct {
	SessionID      string         `json:"session_id"`
	Prompt         string         `json:"prompt"`
	ResolvedParams map[string]any `json:"resolved_params,omitempty"`
}

func (s *Server) handleSetGoal(ctx context.Context, req *mcp.CallToolRequest, input SetGoalRequest) (*mcp.CallToolResult, *supervisor.GoalResult, error) {
	if input.SessionID == "" {
		return nil, nil, apierr.Enhance(apierr.New(apierr.ErrMissingRequired, "session_id is required"))
	}
	if input.Prompt == "" {
		return nil, nil, apierr.Enhance(apierr.New(apierr.ErrInvalidPrompt, "prompt must not be empty"))
	}

	result, err := s.pipeline.SetGoal(ctx, input.SessionID, input.Prompt, input.ResolvedParams)
	if err != nil {
		return nil, nil, toStructuredError(err)
	}

	return &mcp.CallToolResult{Content: toJSONContent(&result)}, &result, nil
}

// ExecuteRequest is execute's input.
type ExecuteRequest struct {
	SessionID string `json:"session_id"`
}

// ExecuteResponse is execute's output.
type ExecuteResponse struct {
	Calls []model.CorrectedToolCall `json:"calls"`
}

func (s *Server) handleExecute(ctx context.Context, req *mcp.CallToolRequest, input ExecuteRequest) (*mcp.CallToolResult, *ExecuteResponse, error) {
	if input.SessionID == "" {
		return nil, nil, apierr.Enhance(apierr.New(apierr.ErrMissingRequired, "session_id is required"))
	}

	calls, err := s.pipeline.Execute(ctx, input.SessionID)
	if err != nil {
		return nil, nil, toStructuredError(err)
	}

	reporter := streaming.CreateReporter(req, "execute")
	for i, c := range calls {
		reporter.ReportStep(i+1, len(calls), c.Tool, "dispatching")
	}

	response := &ExecuteResponse{Calls: calls}
	return &mcp.CallToolResult{Content: toJSONContent(response)}, response, nil
}

// ProcessCallRequest is process_call's input.
type ProcessCallRequest struct {
	SessionID string         `json:"session_id"`
	ToolName  string         `json:"tool_name"`
	Params    map[string]any `json:"params,omitempty"`
}

// ProcessCallResponse is process_call's output.
type ProcessCallResponse struct {
	Calls []model.CorrectedToolCall `json:"calls"`
}

func (s *Server) handleProcessCall(ctx context.Context, req *mcp.CallToolRequest, input ProcessCallRequest) (*mcp.CallToolResult, *ProcessCallResponse, error) {
	if input.ToolName == "" {
		return nil, nil, apierr.Enhance(apierr.New(apierr.ErrMissingRequired, "tool_name is required"))
	}

	calls, err := s.pipeline.ProcessCall(ctx, input.SessionID, input.ToolName, input.Params)
	if err != nil {
		return nil, nil, toStructuredError(err)
	}

	response := &ProcessCallResponse{Calls: calls}
	return &mcp.CallToolResult{Content: toJSONContent(response)}, response, nil
}

// ImportWorkflowRequest is import_workflow's input. A single-shot import
// sets Content (and SourceName); a chunked import (spec.md §6, for payloads
// too large for one call) instead sets Action to "init", "append",
// "finalize", or "abort" and threads SessionID across the calls.
type ImportWorkflowRequest struct {
	Content     string `json:"content,omitempty"`
	SourceName  string `json:"source_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Overwrite   bool   `json:"overwrite,omitempty"`

	Action    string `json:"action,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
}

func (s *Server) handleImportWorkflow(ctx context.Context, req *mcp.CallToolRequest, input ImportWorkflowRequest) (*mcp.CallToolResult, *supervisor.ImportResult, error) {
	switch input.Action {
	case "init":
		if input.SourceName == "" {
			return nil, nil, apierr.Enhance(apierr.New(apierr.ErrMissingRequired, "source_name is required"))
		}
		sessionID := s.pipeline.ImportInit(input.ContentType, input.SourceName)
		result := &supervisor.ImportResult{Status: "session_open", Name: sessionID}
		return &mcp.CallToolResult{Content: toJSONContent(result)}, result, nil

	case "append":
		if input.SessionID == "" {
			return nil, nil, apierr.Enhance(apierr.New(apierr.ErrMissingRequired, "session_id is required"))
		}
		if err := s.pipeline.ImportAppend(input.SessionID, []byte(input.Chunk)); err != nil {
			return nil, nil, toStructuredError(err)
		}
		streaming.CreateReporter(req, "import_workflow").ReportStep(0, 0, input.SessionID, "chunk appended")
		result := &supervisor.ImportResult{Status: "chunk_appended", Name: input.SessionID}
		return &mcp.CallToolResult{Content: toJSONContent(result)}, result, nil

	case "abort":
		if input.SessionID == "" {
			return nil, nil, apierr.Enhance(apierr.New(apierr.ErrMissingRequired, "session_id is required"))
		}
		if err := s.pipeline.ImportAbort(input.SessionID); err != nil {
			return nil, nil, toStructuredError(err)
		}
		result := &supervisor.ImportResult{Status: "aborted", Name: input.SessionID}
		return &mcp.CallToolResult{Content: toJSONContent(result)}, result, nil

	case "finalize":
		if input.SessionID == "" {
			return nil, nil, apierr.Enhance(apierr.New(apierr.ErrMissingRequired, "session_id is required"))
		}
		result, err := s.pipeline.ImportFinalize(input.SessionID, input.Overwrite)
		if err != nil {
			return nil, nil, toStructuredError(err)
		}
		return &mcp.CallToolResult{Content: toJSONContent(&result)}, &result, nil
	}

	if input.Content == "" {
		return nil, nil, apierr.Enhance(apierr.New(apierr.ErrInvalidCatalogContent, "content must not be empty"))
	}
	if input.SourceName == "" {
		return nil, nil, apierr.Enhance(apierr.New(apierr.ErrMissingRequired, "source_name is required"))
	}

	result, err := s.pipeline.ImportWorkflow([]byte(input.Content), input.SourceName, input.Overwrite)
	if err != nil {
		return nil, nil, toStructuredError(err)
	}

	return &mcp.CallToolResult{Content: toJSONContent(&result)}, &result, nil
}

// GetStatusRequest is get_status's input (no parameters).
type GetStatusRequest struct{}

func (s *Server) handleGetStatus(ctx context.Context, req *mcp.CallToolRequest, input GetStatusRequest) (*mcp.CallToolResult, *supervisor.StatusSnapshot, error) {
	result := s.pipeline.GetStatus()
	return &mcp.CallToolResult{Content: toJSONContent(&result)}, &result, nil
}

// toStructuredError classifies a Pipeline error into the closest apierr
// code it matches, falling back to apierr.FromError's generic wrap.
func toStructuredError(err error) *apierr.StructuredError {
	var blocked *firewall.BlockedError
	if errors.As(err, &blocked) {
		return apierr.Enhance(apierr.New(apierr.ErrCallBlocked, err.Error()).WithDetails(blocked.Reason))
	}

	var invalid *catalog.ValidationError
	if errors.As(err, &invalid) {
		if invalid.Field == "name" {
			return apierr.Enhance(apierr.New(apierr.ErrWorkflowExists, err.Error()))
		}
		return apierr.Enhance(apierr.New(apierr.ErrInvalidCatalogContent, err.Error()))
	}

	if errors.Is(err, supervisor.ErrNoPendingGoal) {
		return apierr.Enhance(apierr.New(apierr.ErrNoPendingGoal, err.Error()))
	}

	return apierr.Enhance(apierr.FromError(err))
}
