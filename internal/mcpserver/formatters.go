package mcpserver

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"routersupervisor/internal/format"
)

var (
	responseFormatter     format.ResponseFormatter
	responseFormatterOnce sync.Once
)

// initResponseFormatter builds the global response formatter from
// RS_RESPONSE_FORMAT, read once at the first tool response.
func initResponseFormatter() {
	level := format.ParseFormatLevel(os.Getenv("RS_RESPONSE_FORMAT"))

	var opts format.FormatOptions
	switch level {
	case format.FormatCompact:
		opts = format.CompactOptions()
	case format.FormatMinimal:
		opts = format.MinimalOptions()
	default:
		opts = format.DefaultOptions()
	}

	responseFormatter = format.NewFormatter(level, opts)
}

func getResponseFormatter() format.ResponseFormatter {
	responseFormatterOnce.Do(initResponseFormatter)
	return responseFormatter
}

// toJSONContent converts a response to MCP TextContent, applying the
// configured response-format level before marshaling.
func toJSONContent(data any) []mcp.Content {
	formatter := getResponseFormatter()
	if formatter.Level() != format.FormatFull {
		if formatted, err := formatter.Format(data); err == nil {
			data = formatted
		}
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		jsonData, _ = json.Marshal(map[string]string{"error": err.Error()})
	}

	return []mcp.Content{&mcp.TextContent{Text: string(jsonData)}}
}
