package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sitesweep/internal/settings"
)

// IntervalTool handles the sweep_interval MCP tool.
type IntervalTool struct {
	app App
}

// NewIntervalTool creates an IntervalTool.
func NewIntervalTool(app App) *IntervalTool {
	return &IntervalTool{app: app}
}

// Definition returns the MCP tool definition for sweep_interval.
func (t *IntervalTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_interval",
		mcp.WithDescription(
			"Set how many minutes after a tracked-site visit the purge runs. "+
				"Changing it cancels a running timer; the next tracked visit starts a new one. "+
				"0 disables the timer.",
		),
		mcp.WithNumber("minutes",
			mcp.Required(),
			mcp.Min(0),
			mcp.Max(settings.MaxIntervalMinutes),
			mcp.Description("Idle interval in minutes"),
		),
	)
}

// Handle processes the sweep_interval tool call.
func (t *IntervalTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, ok := req.GetArguments()["minutes"].(float64)
	if !ok || v < 0 || v != math.Trunc(v) {
		return mcp.NewToolResultError(fmt.Sprintf(
			"'minutes' must be a whole number between 0 and %d", settings.MaxIntervalMinutes)), nil
	}
	minutes := uint(min(v, settings.MaxIntervalMinutes+1))

	st, err := t.app.SetInterval(ctx, minutes)
	if err != nil {
		return errorResult("Changing the interval", err), nil
	}

	var b strings.Builder
	b.WriteString("Interval updated.\n\n")
	renderStatus(&b, st)
	return mcp.NewToolResultText(b.String()), nil
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
