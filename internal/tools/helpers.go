// Package tools implements the sitesweep MCP tool handlers.
//
// Each tool is a struct holding the App it drives, with Definition()
// returning the mcp.Tool schema and Handle() processing a call. Domain
// failures are reported as tool error results, never as Go errors.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sitesweep/internal/engine"
	"github.com/HendryAvila/sitesweep/internal/insights"
	"github.com/HendryAvila/sitesweep/internal/purge"
	"github.com/HendryAvila/sitesweep/internal/settings"
	"github.com/HendryAvila/sitesweep/internal/timer"
)

// App is the application surface the tools drive. *engine.App
// implements it.
type App interface {
	Status(ctx context.Context) (engine.Status, error)
	SetEnabled(ctx context.Context, on bool) (engine.Status, error)
	AddSite(ctx context.Context, input string) (string, bool, error)
	RemoveSite(ctx context.Context, input string) (bool, error)
	SetInterval(ctx context.Context, minutes uint) (engine.Status, error)
	PurgeNow(ctx context.Context, trigger purge.Trigger) (purge.Result, error)
	Insights(ctx context.Context) ([]insights.Summary, error)
	Delete(ctx context.Context, opts insights.DeleteOptions) (int, error)
	Runs(ctx context.Context, limit int) ([]settings.PurgeRun, error)
	Notices() []engine.Notice
}

var _ App = (*engine.App)(nil)

// errorResult turns err into a tool error. Input errors are shown as is;
// anything else gets the operation name and a generic hint.
func errorResult(op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, engine.ErrInvalid), errors.Is(err, engine.ErrBusy), errors.Is(err, engine.ErrUnavailable):
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed. Check the sitesweep log for details.", op))
}

// renderStatus writes st as a markdown block.
func renderStatus(b *strings.Builder, st engine.Status) {
	enabled := "off"
	if st.Enabled {
		enabled = "on"
	}
	fmt.Fprintf(b, "- **Auto-purge**: %s\n", enabled)
	fmt.Fprintf(b, "- **Interval**: %d minute(s)\n", st.IntervalMinutes)

	if len(st.TrackedSites) == 0 {
		b.WriteString("- **Tracked sites**: none\n")
	} else {
		fmt.Fprintf(b, "- **Tracked sites** (%d): %s\n", len(st.TrackedSites), strings.Join(st.TrackedSites, ", "))
	}

	if st.State == timer.StateArmed && st.NextFireAt != nil {
		fmt.Fprintf(b, "- **Timer**: armed by %s, purging at %s (in %s)\n",
			st.TriggerSite, st.NextFireAt.Local().Format(time.Kitchen),
			(time.Duration(st.RemainingSeconds) * time.Second).String())
	} else {
		b.WriteString("- **Timer**: idle\n")
	}
	fmt.Fprintf(b, "- **Last cleaned**: %s\n", st.LastCleaned)
}
