package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusTool handles the sweep_status MCP tool.
type StatusTool struct {
	app App
}

// NewStatusTool creates a StatusTool.
func NewStatusTool(app App) *StatusTool {
	return &StatusTool{app: app}
}

// Definition returns the MCP tool definition for sweep_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_status",
		mcp.WithDescription(
			"Show whether auto-purge is on, the tracked sites, the idle interval, "+
				"and the timer state (idle, or armed with its deadline).",
		),
	)
}

// Handle processes the sweep_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := t.app.Status(ctx)
	if err != nil {
		return errorResult("Loading status", err), nil
	}

	var b strings.Builder
	b.WriteString("## sitesweep\n\n")
	renderStatus(&b, st)
	return mcp.NewToolResultText(b.String()), nil
}
