package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sitesweep/internal/purge"
)

// PurgeTool handles the sweep_purge MCP tool.
type PurgeTool struct {
	app App
}

// NewPurgeTool creates a PurgeTool.
func NewPurgeTool(app App) *PurgeTool {
	return &PurgeTool{app: app}
}

// Definition returns the MCP tool definition for sweep_purge.
func (t *PurgeTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_purge",
		mcp.WithDescription(
			"Delete the browsing history of every tracked site now and reset the timer. "+
				"This cannot be undone.",
		),
	)
}

// Handle processes the sweep_purge tool call.
func (t *PurgeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.app.PurgeNow(ctx, purge.TriggerManual)
	if err != nil {
		return errorResult("Purging", err), nil
	}

	var b strings.Builder
	b.WriteString("## Purge complete\n\n")
	if len(res.Sites) == 0 {
		b.WriteString("No sites are tracked; the timer was reset.\n")
		return mcp.NewToolResultText(b.String()), nil
	}
	fmt.Fprintf(&b, "- **Sites**: %s\n", strings.Join(res.Sites, ", "))
	fmt.Fprintf(&b, "- **History entries deleted**: %d\n", res.Deleted)
	if res.Kept > 0 {
		fmt.Fprintf(&b, "- **Kept by keep-list**: %d\n", res.Kept)
	}
	if res.CookiesRemoved > 0 {
		fmt.Fprintf(&b, "- **Cookies removed**: %d\n", res.CookiesRemoved)
	}
	if res.Failed > 0 {
		fmt.Fprintf(&b, "- **Failed**: %d (see log)\n", res.Failed)
	}
	return mcp.NewToolResultText(b.String()), nil
}
