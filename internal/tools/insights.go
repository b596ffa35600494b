package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sitesweep/internal/insights"
)

// InsightsTool handles the sweep_insights MCP tool.
type InsightsTool struct {
	app App
}

// NewInsightsTool creates an InsightsTool.
func NewInsightsTool(app App) *InsightsTool {
	return &InsightsTool{app: app}
}

// Definition returns the MCP tool definition for sweep_insights.
func (t *InsightsTool) Definition() mcp.Tool {
	return mcp.NewTool("sweep_insights",
		mcp.WithDescription(
			"Estimate how much local browsing data each domain holds (history, cookies, cache, "+
				"localStorage), largest first. Read-only.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Max domains to list (default: 20)"),
		),
	)
}

// Handle processes the sweep_insights tool call.
func (t *InsightsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 20)

	summaries, err := t.app.Insights(ctx)
	if err != nil {
		return errorResult("Analyzing storage", err), nil
	}
	if len(summaries) == 0 {
		return mcp.NewToolResultText("No browsing data found."), nil
	}

	var total int64
	for _, s := range summaries {
		total += s.Total
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Storage by domain\n\n%d domain(s), %s total\n\n", len(summaries), insights.FormatBytes(total))
	b.WriteString("| Domain | Total | History | Cookies | Cache | localStorage | Last visit |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for i, s := range summaries {
		if limit > 0 && i >= limit {
			fmt.Fprintf(&b, "\n…and %d more\n", len(summaries)-limit)
			break
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			s.Domain,
			insights.FormatBytes(s.Total),
			insights.FormatBytes(s.History),
			insights.FormatBytes(s.Cookies),
			insights.FormatBytes(s.Cache),
			insights.FormatBytes(s.LocalStorage),
			insights.FormatLastAccessed(s.LastAccessed),
		)
	}
	return mcp.NewToolResultText(b.String()), nil
}
