// Package prompts implements MCP prompt handlers for sitesweep.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a sequence of sweep_* tools. Unlike tools
// (which the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

const defaultSetupMinutes = 5

// SetupPrompt handles the sweep-setup MCP prompt.
// It guides the AI through tracking a first site and turning auto-purge on.
type SetupPrompt struct{}

// NewSetupPrompt creates a SetupPrompt.
func NewSetupPrompt() *SetupPrompt {
	return &SetupPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *SetupPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("sweep-setup",
		mcp.WithPromptDescription(
			"Set up auto-purge: track a site, pick how long after a visit "+
				"its history is deleted, and switch auto-purge on.",
		),
		mcp.WithArgument("site",
			mcp.ArgumentDescription("Site to track, e.g. example.com. Asked for when missing."),
		),
		mcp.WithArgument("minutes",
			mcp.ArgumentDescription("Minutes between the first visit and the purge. Default: 5"),
		),
	)
}

// Handle processes the sweep-setup prompt request.
func (p *SetupPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	site := ""
	minutes := defaultSetupMinutes
	if args := req.Params.Arguments; args != nil {
		site = args["site"]
		if m, err := strconv.Atoi(args["minutes"]); err == nil && m >= 0 {
			minutes = m
		}
	}

	step1 := fmt.Sprintf("1. Run `sweep_track` with site='%s'\n", site)
	if site == "" {
		step1 = "1. Ask me which site I want to track, then run `sweep_track` with it\n"
	}

	return &mcp.GetPromptResult{
		Description: "Set up sitesweep auto-purge",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"I want sitesweep to clean up my browsing history automatically.\n\n" +
						"Please:\n" +
						step1 +
						fmt.Sprintf("2. Run `sweep_interval` with minutes=%d\n", minutes) +
						"3. Run `sweep_enable` with enabled=true\n" +
						"4. Finish with `sweep_status` and explain in one or two sentences what will happen the next time I visit a tracked site\n\n" +
						"If a step fails, show me the error and stop. Don't retry with a different site unless I ask.",
				),
			},
		},
	}, nil
}
