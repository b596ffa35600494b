package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the sweep-review MCP prompt.
// It instructs the AI to read the current state and suggest sites to track.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("sweep-review",
		mcp.WithPromptDescription(
			"Review what sitesweep is doing: timer state, recent purges, "+
				"and which domains hold the most browsing data.",
		),
	)
}

// Handle processes the sweep-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "sitesweep review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `sweep_status`, `sweep_runs` and `sweep_insights`.\n\n" +
						"Then:\n" +
						"1. Tell me whether auto-purge is on and, if a timer is armed, when it fires\n" +
						"2. Summarize the last few purges in one line each\n" +
						"3. Point out untracked domains from the insights table that hold a lot of data\n" +
						"4. Ask me before tracking any of them. Never run `sweep_purge` or `sweep_delete` on your own",
				),
			},
		},
	}, nil
}
