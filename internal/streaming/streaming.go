// Package streaming provides MCP progress notification support for long-running tools.
//
// This package enables real-time progress updates during tool execution using the
// standard MCP notifications/progress mechanism. It's designed to be:
//
//   - Backward Compatible: Clients that don't provide a progressToken simply don't
//     receive notifications; the tool executes normally.
//
//   - Non-Intrusive: Handlers can call progress methods without checking if streaming
//     is enabled; the DefaultReporter handles disabled cases as no-ops.
//
//   - Rate Limited: Built-in debouncing prevents notification floods.
//
//   - Configurable: Per-tool configuration controls behavior like partial data sending.
//
// # Basic Usage
//
// In a handler, create a reporter and report progress:
//
//	func (h *Handler) Handle(ctx context.Context, req *mcp.CallToolRequest, input Input) (*mcp.CallToolResult, *Output, error) {
//	    // Create a reporter (will be no-op if client doesn't want streaming)
//	    reporter := streaming.CreateReporter(req, "my-tool")
//
//	    // Report step-based progress
//	    reporter.ReportStep(1, 3, "analyze", "Analyzing input...")
//
//	    // Do work...
//
//	    reporter.ReportStep(2, 3, "process", "Processing data...")
//
//	    // Do more work...
//
//	    reporter.ReportStep(3, 3, "complete", "Done!")
//
//	    return nil, &Output{...}, nil
//	}
//
// # Using StepReporter
//
// For step-based workflows, StepReporter provides convenient tracking:
//
//	steps := []string{"analyze", "process", "synthesize", "validate"}
//	reporter := streaming.CreateReporter(req, "my-tool")
//	sr := streaming.NewStepReporter(reporter, steps)
//
//	sr.StartStep("Starting analysis...")
//	// work...
//	sr.StartStep("Processing data...")
//	// work...
//
// # Context Integration
//
// The reporter can be stored in context for nested function calls:
//
//	ctx, reporter := streaming.InjectReporter(ctx, req, "my-tool")
//
//	// Later, in a nested function:
//	r := streaming.GetReporter(ctx)
//	r.ReportProgress(50, 100, "Halfway done")
//
// # Streaming-Enabled Tools
//
//   - execute: variable step count (one per emitted tool call), sends step results
//   - import_workflow: chunked sessions report one step per appended chunk
package streaming

// Version is the streaming package version.
const Version = "1.0.0"

// StreamingEnabledTools lists all tools that support streaming progress notifications.
var StreamingEnabledTools = []string{
	"execute",
	"import_workflow",
}
