// Package resources implements MCP resource handlers for sitesweep.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (sitesweep://...) following MCP conventions.
package resources

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sitesweep/internal/engine"
	"github.com/HendryAvila/sitesweep/internal/settings"
)

const (
	StatusURI = "sitesweep://status"
	RunsURI   = "sitesweep://runs"
)

// App is the read side of the application the resources expose.
type App interface {
	Status(ctx context.Context) (engine.Status, error)
	Runs(ctx context.Context, limit int) ([]settings.PurgeRun, error)
}

// Handler manages sitesweep resource endpoints.
type Handler struct {
	app App
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(app App) *Handler {
	return &Handler{app: app}
}

// StatusResource returns the MCP resource definition for the current status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"sitesweep status",
		mcp.WithResourceDescription("Auto-purge flag, tracked sites, interval and timer state"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current status as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, err := h.app.Status(ctx)
	if err != nil {
		return errorResource(req.Params.URI, "status unavailable"), nil
	}
	return jsonResource(req.Params.URI, st)
}

// RunsResource returns the MCP resource definition for recent purges.
func (h *Handler) RunsResource() mcp.Resource {
	return mcp.NewResource(
		RunsURI,
		"sitesweep purge runs",
		mcp.WithResourceDescription("The 20 most recent purges, newest first"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRuns returns recent purges as JSON.
func (h *Handler) HandleRuns(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := h.app.Runs(ctx, 20)
	if err != nil {
		return errorResource(req.Params.URI, fmt.Sprintf("runs unavailable: %v", err)), nil
	}
	if runs == nil {
		runs = []settings.PurgeRun{}
	}
	return jsonResource(req.Params.URI, runs)
}
