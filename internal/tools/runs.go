package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// RunsTool handles the sweep_runs MCP tool.
type RunsTool struct {
	app App
}

// NewRunsTool creates a RunsTool.
func NewRunsTool(app App) *RunsTool {
	return &RunsTool{app: app}
}

// Definition returns the MCP tool definition for sweep_runs.
func (t *RunsTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_runs",
		mcp.WithDescription("List recent purges, newest first, with what each one deleted."),
		mcp.WithNumber("limit",
			mcp.Description("Max runs (default: 10)"),
		),
	)
}

// Handle processes the sweep_runs tool call.
func (t *RunsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := t.app.Runs(ctx, intArg(req, "limit", 10))
	if err != nil {
		return errorResult("Listing purges", err), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No purges yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Recent purges (%d)\n\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(&b, "- %s **%s**", r.FinishedAt.Local().Format(time.DateTime), r.Trigger)
		if r.TriggerSite != "" {
			fmt.Fprintf(&b, " (armed by %s)", r.TriggerSite)
		}
		fmt.Fprintf(&b, ": %d deleted", r.Deleted)
		if r.Failed > 0 {
			fmt.Fprintf(&b, ", %d failed", r.Failed)
		}
		if r.CookiesRemoved > 0 {
			fmt.Fprintf(&b, ", %d cookie(s)", r.CookiesRemoved)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// NoticesTool handles the sweep_notices MCP tool.
type NoticesTool struct {
	app App
}

// NewNoticesTool creates a NoticesTool.
func NewNoticesTool(app App) *NoticesTool {
	return &NoticesTool{app: app}
}

// Definition returns the MCP tool definition for sweep_notices.
func (t *NoticesTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_notices",
		mcp.WithDescription("Show recent failures reported by sitesweep (settings, purge, browser access)."),
	)
}

// Handle processes the sweep_notices tool call.
func (t *NoticesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notices := t.app.Notices()
	if len(notices) == 0 {
		return mcp.NewToolResultText("No problems reported."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Notices (%d)\n\n", len(notices))
	for i := len(notices) - 1; i >= 0; i-- {
		n := notices[i]
		fmt.Fprintf(&b, "- %s **%s**: %s\n", n.At.Local().Format(time.DateTime), n.Op, n.Message)
	}
	return mcp.NewToolResultText(b.String()), nil
}
