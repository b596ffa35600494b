// Package api serves the sitesweep HTTP API.
//
// It is the second foreground context next to the MCP tools: a browser
// extension or dashboard reads status and changes settings here, and
// reports tab navigation through POST /api/v1/events/navigation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/HendryAvila/sitesweep/internal/engine"
	"github.com/HendryAvila/sitesweep/internal/host"
	"github.com/HendryAvila/sitesweep/internal/insights"
	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/purge"
	"github.com/HendryAvila/sitesweep/internal/settings"
)

// App is the application surface the API drives. *engine.App implements it.
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
	ReportNavigation(ev host.NavigationEvent) bool
}

var _ App = (*engine.App)(nil)

const maxBodyBytes = 1 << 20

type handler struct {
	app App
	log *logging.Logger
}

// NewRouter returns the API routes.
func NewRouter(app App, logger *logging.Logger) http.Handler {
	h := &handler{app: app, log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Put("/enabled", h.setEnabled)
		r.Post("/sites", h.addSite)
		r.Delete("/sites/{site}", h.removeSite)
		r.Put("/interval", h.setInterval)
		r.Post("/purge", h.purge)
		r.Get("/insights", h.insights)
		r.Post("/delete", h.delete)
		r.Get("/runs", h.runs)
		r.Get("/notices", h.notices)
		r.Post("/events/navigation", h.navigation)
	})
	return r
}

// requestLogger logs each request at debug level. chi's own Logger
// middleware writes to stdout, which belongs to the MCP transport.
func requestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debugf("api: %s %s -> %d (%s) [%s]",
				r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Microsecond),
				middleware.GetReqID(r.Context()))
		})
	}
}

// Serve runs the API on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("api: listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Handlers ---

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.app.Status(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *handler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	st, err := h.app.SetEnabled(r.Context(), *req.Enabled)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type siteRequest struct {
	Site string `json:"site"`
}

type siteResponse struct {
	Site  string `json:"site"`
	Added bool   `json:"added"`
}

func (h *handler) addSite(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if !decode(w, r, &req) {
		return
	}
	site, added, err := h.app.AddSite(r.Context(), req.Site)
	if err != nil {
		h.fail(w, err)
		return
	}
	code := http.StatusOK
	if added {
		code = http.StatusCreated
	}
	writeJSON(w, code, siteResponse{Site: site, Added: added})
}

func (h *handler) removeSite(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")
	removed, err := h.app.RemoveSite(r.Context(), site)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, site+" is not tracked")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type intervalRequest struct {
	Minutes *int `json:"minutes"`
}

func (h *handler) setInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Minutes == nil || *req.Minutes < 0 {
		writeError(w, http.StatusBadRequest, "minutes must be a non-negative integer")
		return
	}
	st, err := h.app.SetInterval(r.Context(), uint(*req.Minutes))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) purge(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.PurgeNow(r.Context(), purge.TriggerManual)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) insights(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.app.Insights(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if n := queryInt(r, "limit", 0); n > 0 && n < len(summaries) {
		summaries = summaries[:n]
	}
	writeJSON(w, http.StatusOK, summaries)
}

type deleteRequest struct {
	Domain string    `json:"domain"`
	URL    string    `json:"url"`
	Types  []string  `json:"types"`
	Since  time.Time `json:"since"`
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decode(w, r, &req) {
		return
	}
	opts := insights.DeleteOptions{Domain: req.Domain, URL: req.URL, Since: req.Since}
	for _, raw := range req.Types {
		dt, ok := insights.ParseDataType(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown data type "+strconv.Quote(raw))
			return
		}
		opts.Types = append(opts.Types, dt)
	}
	n, err := h.app.Delete(r.Context(), opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

func (h *handler) runs(w http.ResponseWriter, r *http.Request) {
	runs, err := h.app.Runs(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		h.fail(w, err)
		return
	}
	if runs == nil {
		runs = []settings.PurgeRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handler) notices(w http.ResponseWriter, r *http.Request) {
	notices := h.app.Notices()
	if notices == nil {
		notices = []engine.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}

type navigationResponse struct {
	Delivered bool `json:"delivered"`
}

func (h *handler) navigation(w http.ResponseWriter, r *http.Request) {
	var ev host.NavigationEvent
	if !decode(w, r, &ev) {
		return
	}
	switch ev.Kind {
	case host.NavigationLoaded, host.NavigationActivated:
	default:
		writeError(w, http.StatusBadRequest, "kind must be loaded or activated")
		return
	}
	if strings.TrimSpace(ev.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	writeJSON(w, http.StatusAccepted, navigationResponse{Delivered: h.app.ReportNavigation(ev)})
}

// --- Helpers ---

type errorResponse struct {
	Error string `json:"error"`
}

// fail maps an App error to a status code. Only input errors carry
// their own message.
func (h *handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Errorf("api: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
