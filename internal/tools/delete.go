package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sitesweep/internal/insights"
)

// DeleteTool handles the sweep_delete MCP tool.
type DeleteTool struct {
	app App
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(app App) *DeleteTool {
	return &DeleteTool{app: app}
}

// Definition returns the MCP tool definition for sweep_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_delete",
		mcp.WithDescription(
			"Delete selected browsing data for one domain (including its subdomains) or one exact URL. "+
				"This cannot be undone.",
		),
		mcp.WithString("domain",
			mcp.Description("Domain whose data to delete, e.g. example.com"),
		),
		mcp.WithString("url",
			mcp.Description("Exact URL whose history entry to delete"),
		),
		mcp.WithArray("types",
			mcp.Description("Data types: history, cookies, cache, localStorage (default: all)"),
			mcp.WithStringItems(mcp.Enum("history", "cookies", "cache", "localStorage")),
		),
		mcp.WithNumber("since_hours",
			mcp.Description("Only delete history visited in the last N hours (default: all time)"),
		),
	)
}

// Handle processes the sweep_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := insights.DeleteOptions{
		Domain: req.GetString("domain", ""),
		URL:    req.GetString("url", ""),
	}
	if opts.Domain == "" && opts.URL == "" {
		return mcp.NewToolResultError("either 'domain' or 'url' is required"), nil
	}
	for _, raw := range req.GetStringSlice("types", nil) {
		dt, ok := insights.ParseDataType(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown data type %q", raw)), nil
		}
		opts.Types = append(opts.Types, dt)
	}
	if h := intArg(req, "since_hours", 0); h > 0 {
		opts.Since = time.Now().Add(-time.Duration(h) * time.Hour)
	}

	n, err := t.app.Delete(ctx, opts)
	if err != nil {
		return errorResult("Deleting data", err), nil
	}

	target := opts.Domain
	if opts.URL != "" {
		target = opts.URL
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %d item(s) for %s.", n, target)), nil
}
