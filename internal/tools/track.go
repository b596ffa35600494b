package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// TrackTool handles the sweep_track MCP tool.
type TrackTool struct {
	app App
}

// NewTrackTool creates a TrackTool.
func NewTrackTool(app App) *TrackTool {
	return &TrackTool{app: app}
}

// Definition returns the MCP tool definition for sweep_track.
func (t *TrackTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_track",
		mcp.WithDescription(
			"Add a site to the tracked list. Visiting it (or any subdomain) starts the purge timer. "+
				"Accepts a bare domain (example.com) or a URL; public suffixes like 'com' are rejected.",
		),
		mcp.WithString("site",
			mcp.Required(),
			mcp.Description("Domain or URL to track, e.g. example.com"),
		),
	)
}

// Handle processes the sweep_track tool call.
func (t *TrackTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := req.GetString("site", "")
	if input == "" {
		return mcp.NewToolResultError("'site' is required"), nil
	}

	site, added, err := t.app.AddSite(ctx, input)
	if err != nil {
		return errorResult("Adding the site", err), nil
	}
	if !added {
		return mcp.NewToolResultText(fmt.Sprintf("%s is already tracked.", site)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Now tracking %s.", site)), nil
}

// UntrackTool handles the sweep_untrack MCP tool.
type UntrackTool struct {
	app App
}

// NewUntrackTool creates an UntrackTool.
func NewUntrackTool(app App) *UntrackTool {
	return &UntrackTool{app: app}
}

// Definition returns the MCP tool definition for sweep_untrack.
func (t *UntrackTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_untrack",
		mcp.WithDescription(
			"Remove a site from the tracked list. A timer started by that site is cancelled without purging.",
		),
		mcp.WithString("site",
			mcp.Required(),
			mcp.Description("Tracked domain to remove, exactly as listed by sweep_status"),
		),
	)
}

// Handle processes the sweep_untrack tool call.
func (t *UntrackTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	site := req.GetString("site", "")
	if site == "" {
		return mcp.NewToolResultError("'site' is required"), nil
	}

	removed, err := t.app.RemoveSite(ctx, site)
	if err != nil {
		return errorResult("Removing the site", err), nil
	}
	if !removed {
		return mcp.NewToolResultText(fmt.Sprintf("%s was not tracked.", site)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Stopped tracking %s.", site)), nil
}
