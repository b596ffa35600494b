package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// EnableTool handles the sweep_enable MCP tool.
type EnableTool struct {
	app App
}

// NewEnableTool creates an EnableTool.
func NewEnableTool(app App) *EnableTool {
	return &EnableTool{app: app}
}

// Definition returns the MCP tool definition for sweep_enable.
func (t *EnableTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_enable",
		mcp.WithDescription(
			"Turn auto-purge on or off. Turning it off cancels a running timer without purging anything.",
		),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to enable auto-purge, false to disable it"),
		),
	)
}

// Handle processes the sweep_enable tool call.
func (t *EnableTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	on, err := req.RequireBool("enabled")
	if err != nil {
		return mcp.NewToolResultError("'enabled' is required (true or false)"), nil
	}

	st, err := t.app.SetEnabled(ctx, on)
	if err != nil {
		return errorResult("Changing auto-purge", err), nil
	}

	var b strings.Builder
	if on {
		b.WriteString("Auto-purge enabled.\n\n")
	} else {
		b.WriteString("Auto-purge disabled.\n\n")
	}
	renderStatus(&b, st)
	return mcp.NewToolResultText(b.String()), nil
}
