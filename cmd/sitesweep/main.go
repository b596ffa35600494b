// sitesweep: automatic history purge for tracked sites
//
// A local daemon that deletes the browsing history of "tracked" sites a
// fixed number of minutes after the first visit. Driven from any MCP
// client (stdio) or from the local HTTP API.
//
// Usage:
//
//	sitesweep serve    # MCP server (stdio) plus timer, watcher and API
//	sitesweep daemon   # timer, watcher and API without MCP
//	sitesweep purge    # purge tracked sites once and exit
//	sitesweep status   # print the current status and exit
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/sitesweep/internal/config"
	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/purge"
	sweepserver "github.com/HendryAvila/sitesweep/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = withServer(runServe)
	case "daemon":
		err = withServer(runDaemon)
	case "purge":
		err = withServer(runPurge)
	case "status":
		err = withServer(runStatus)
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("sitesweep v%s\n", sweepserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withServer loads the configuration, wires a Server and runs fn with a
// context cancelled on interrupt.
func withServer(fn func(ctx context.Context, s *sweepserver.Server) error) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogOptions())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := sweepserver.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warnf("close: %v", err)
		}
	}()

	return fn(ctx, s)
}

func runServe(ctx context.Context, s *sweepserver.Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bg := make(chan error, 1)
	go func() { bg <- s.Run(ctx) }()

	// The stdio server returns when the client closes stdin.
	err := server.ServeStdio(s.MCP())
	cancel()
	if bgErr := <-bg; err == nil {
		err = bgErr
	}
	return err
}

func runDaemon(ctx context.Context, s *sweepserver.Server) error {
	return s.Run(ctx)
}

func runPurge(ctx context.Context, s *sweepserver.Server) error {
	res, err := s.App.PurgeNow(ctx, purge.TriggerCLI)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d site(s): %s deleted, %s kept, %s skipped, %s failed",
		len(res.Sites), humanize.Comma(int64(res.Deleted)), humanize.Comma(int64(res.Kept)),
		humanize.Comma(int64(res.Skipped)), humanize.Comma(int64(res.Failed)))
	if res.CookiesRemoved > 0 {
		fmt.Printf(", %s cookie(s) removed", humanize.Comma(int64(res.CookiesRemoved)))
	}
	fmt.Println()
	return nil
}

func runStatus(ctx context.Context, s *sweepserver.Server) error {
	st, err := s.App.Status(ctx)
	if err != nil {
		return err
	}
	if len(os.Args) > 2 && os.Args[2] == "--json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	onOff := "off"
	if st.Enabled {
		onOff = "on"
	}
	tracked := "none"
	if len(st.TrackedSites) > 0 {
		tracked = strings.Join(st.TrackedSites, ", ")
	}
	fmt.Printf("Auto-purge:    %s\n", onOff)
	fmt.Printf("Interval:      %d minute(s)\n", st.IntervalMinutes)
	fmt.Printf("Tracked sites: %s\n", tracked)
	if st.NextFireAt != nil {
		fmt.Printf("Timer:         armed by %s, fires %s\n", st.TriggerSite, humanize.Time(*st.NextFireAt))
	} else {
		fmt.Printf("Timer:         idle\n")
	}
	fmt.Printf("Last cleaned:  %s\n", st.LastCleaned)
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `sitesweep v%s - automatic history purge for tracked sites

Usage:
  sitesweep serve          Start the MCP server (stdio) with the timer, watcher and API
  sitesweep daemon         Run the timer, watcher and API without MCP
  sitesweep purge          Purge the history of every tracked site now
  sitesweep status [--json] Print the current status
  sitesweep version        Print the version

Configuration:
  %s (override with $%s)

  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "sitesweep": {
        "command": "sitesweep",
        "args": ["serve"]
      }
    }
  }
`, sweepserver.Version, config.Path(), config.EnvPath)
}
