// Package server wires all sitesweep components.
//
// This is the composition root: it opens the stores, connects to the
// browser, and injects the concrete implementations into the engine, the
// MCP tools/prompts/resources and the HTTP API. No business logic lives
// here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/sitesweep/internal/api"
	"github.com/HendryAvila/sitesweep/internal/chromium"
	"github.com/HendryAvila/sitesweep/internal/config"
	"github.com/HendryAvila/sitesweep/internal/engine"
	"github.com/HendryAvila/sitesweep/internal/host"
	"github.com/HendryAvila/sitesweep/internal/insights"
	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/prompts"
	"github.com/HendryAvila/sitesweep/internal/purge"
	"github.com/HendryAvila/sitesweep/internal/resources"
	"github.com/HendryAvila/sitesweep/internal/settings"
	"github.com/HendryAvila/sitesweep/internal/timer"
	"github.com/HendryAvila/sitesweep/internal/tools"
	"github.com/HendryAvila/sitesweep/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Server holds the wired components of one sitesweep process.
type Server struct {
	App *engine.App

	cfg     config.Config
	log     *logging.Logger
	store   *settings.SQLiteStore
	history *chromium.HistoryDB
	browser *chromium.Browser
	ctrl    *timer.Controller
	watcher *watcher.Watcher
}

// New opens the settings store and the browser adapters and wires the
// engine. A missing Chrome profile or an unreachable DevTools endpoint
// is logged and leaves the matching capabilities unavailable; only a
// settings store failure is fatal.
//
// Close must be called on shutdown.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Server, error) {
	store, err := settings.New(settings.Config{DataDir: cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("opening settings store: %w", err)
	}
	s := &Server{cfg: cfg, log: logger, store: store}

	// --- Browser adapters ---

	var history host.HistoryStore = missingHistory{}
	if h, err := openHistory(cfg.Chrome.HistoryPath); err != nil {
		logger.Warnf("history disabled: %v", err)
	} else {
		logger.Infof("history: %s", h.Path())
		s.history = h
		history = h
	}

	nav := host.NewBroadcaster()
	sources := host.MultiSource{nav}

	analyzerOpts := insights.Options{History: history, Logger: logger}
	purgeOpts := purge.Options{
		History:    history,
		Store:      store,
		Keep:       cfg.Purge.Keep,
		MaxResults: cfg.Purge.MaxResults,
		Logger:     logger,
	}

	if cfg.Chrome.ControlURL != "" {
		b, err := chromium.Connect(ctx, cfg.Chrome.ControlURL, logger)
		if err != nil {
			logger.Warnf("devtools disabled: %v", err)
		} else {
			s.browser = b
			sources = append(sources, b)
			analyzerOpts.Cookies = b
			analyzerOpts.Remover = b
			analyzerOpts.Clearer = b
			analyzerOpts.Usage = b
			if cfg.Purge.Cookies {
				purgeOpts.Cookies = b
			}
		}
	}

	// --- Engine ---

	purger := purge.New(purgeOpts)
	s.ctrl = timer.NewController(store, purger.Fire, timer.Options{
		PollInterval: cfg.Timer.PollInterval,
		Logger:       logger,
	})
	s.watcher = watcher.New(sources, s.ctrl, logger)
	s.App = engine.New(engine.Options{
		Store:      store,
		Purger:     purger,
		Guard:      s.ctrl,
		Analyzer:   insights.New(analyzerOpts),
		Navigation: nav,
		Logger:     logger,
	})
	return s, nil
}

func openHistory(path string) (*chromium.HistoryDB, error) {
	if path == "" {
		p, err := chromium.DefaultHistoryPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return chromium.OpenHistory(path)
}

// missingHistory stands in when no Chrome profile could be opened.
type missingHistory struct{}

func (missingHistory) Search(context.Context, host.Query) ([]host.HistoryEntry, error) {
	return nil, chromium.ErrNoProfile
}

func (missingHistory) DeleteURL(context.Context, string) error {
	return chromium.ErrNoProfile
}

// Close releases the browser connection and the databases.
func (s *Server) Close() error {
	var errs []error
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.history != nil {
		errs = append(errs, s.history.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// ─── MCP ─────────────────────────────────────────────────────────────────────

// MCP creates the MCP server with all tools, prompts and resources
// registered against the engine.
func (s *Server) MCP() *server.MCPServer {
	m := server.NewMCPServer(
		"sitesweep",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	statusTool := tools.NewStatusTool(s.App)
	m.AddTool(statusTool.Definition(), statusTool.Handle)

	enableTool := tools.NewEnableTool(s.App)
	m.AddTool(enableTool.Definition(), enableTool.Handle)

	trackTool := tools.NewTrackTool(s.App)
	m.AddTool(trackTool.Definition(), trackTool.Handle)

	untrackTool := tools.NewUntrackTool(s.App)
	m.AddTool(untrackTool.Definition(), untrackTool.Handle)

	intervalTool := tools.NewIntervalTool(s.App)
	m.AddTool(intervalTool.Definition(), intervalTool.Handle)

	purgeTool := tools.NewPurgeTool(s.App)
	m.AddTool(purgeTool.Definition(), purgeTool.Handle)

	insightsTool := tools.NewInsightsTool(s.App)
	m.AddTool(insightsTool.Definition(), insightsTool.Handle)

	deleteTool := tools.NewDeleteTool(s.App)
	m.AddTool(deleteTool.Definition(), deleteTool.Handle)

	runsTool := tools.NewRunsTool(s.App)
	m.AddTool(runsTool.Definition(), runsTool.Handle)

	noticesTool := tools.NewNoticesTool(s.App)
	m.AddTool(noticesTool.Definition(), noticesTool.Handle)

	// --- Register prompts ---

	setupPrompt := prompts.NewSetupPrompt()
	m.AddPrompt(setupPrompt.Definition(), setupPrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt()
	m.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(s.App)
	m.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)
	m.AddResource(resourceHandler.RunsResource(), resourceHandler.HandleRuns)

	return m
}

// ─── Background ──────────────────────────────────────────────────────────────

// Run starts the timer controller, the navigation watcher and, when a
// listen address is configured, the HTTP API. It blocks until ctx is
// cancelled or one of them fails, and waits for all of them to stop.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		once sync.Once
		err  error
	)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e := fn(ctx); e != nil && ctx.Err() == nil {
				once.Do(func() { err = fmt.Errorf("%s: %w", name, e) })
				cancel()
			}
		}()
	}

	start("timer", s.ctrl.Run)
	start("watcher", s.watcher.Run)
	if addr := s.cfg.API.Listen; addr != "" {
		router := s.Handler()
		start("api", func(ctx context.Context) error {
			return api.Serve(ctx, addr, router, s.log)
		})
	}

	wg.Wait()
	return err
}

// Handler returns the HTTP API routes.
func (s *Server) Handler() http.Handler {
	return api.NewRouter(s.App, s.log)
}

// serverInstructions returns the system instructions that tell the AI
// how to use sitesweep.
func serverInstructions() string {
	return `You have access to sitesweep, which deletes the browsing history of
"tracked" sites a fixed number of minutes after the user first visits one.

## How it works

- Auto-purge is off until the user turns it on with sweep_enable.
- The first visit to a tracked site arms a single timer. Later visits do not
  extend it. When it fires, history of every tracked site is deleted and the
  timer goes idle until the next visit.
- A tracked site matches itself and all of its subdomains; "www." is ignored.

## Tools

- sweep_status: current flag, sites, interval and timer. Start here.
- sweep_enable, sweep_track, sweep_untrack, sweep_interval: change settings.
  Turning auto-purge off, untracking the trigger site, or changing the
  interval cancels an armed timer.
- sweep_purge: purge tracked sites now.
- sweep_insights, sweep_delete: per-domain browsing data and selective delete.
- sweep_runs, sweep_notices: recent purges and recent failures.

## Rules

- sweep_purge and sweep_delete cannot be undone. Only run them when the user
  asks for it in this conversation.
- When a tool reports an error, show it to the user as is. Do not retry with
  different arguments on your own.`
}
