// Package web serves the browser front end and a small JSON API for
// sqlstress runs.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	gomponents "maragu.dev/gomponents"

	"sqlstress/internal/pool"
	"sqlstress/internal/runner"
)

// Target describes the configured database for display.
type Target struct {
	Driver   string
	Server   string
	Database string
	DSN      string // masked
}

type Handler struct {
	Provider pool.Provider
	Defaults runner.Config
	Target   Target
	Logger   *slog.Logger
}

func NewHandler(provider pool.Provider, defaults runner.Config, target Target, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Provider: provider,
		Defaults: defaults.Normalize(),
		Target:   target,
		Logger:   logger,
	}
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	MountRoutes(r, h)
	return r
}

func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.Index)
	r.Post("/run", h.Run)
	r.Post("/evict", h.Evict)
	r.Post("/pool", h.UpdatePool)
	r.Post("/test-connection", h.TestConnection)
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", h.APIRun)
		r.Get("/pool", h.APIPool)
		r.Post("/pool/evict", h.APIEvict)
	})
}

func (h *Handler) page() pageData {
	d := pageData{Request: h.Defaults, Target: h.Target}
	if st, ok := pool.Describe(h.Provider); ok {
		d.Pool = &st
	}
	return d
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	d := h.page()
	st := pool.TestConnection(r.Context(), h.Provider)
	d.Conn = &st
	renderHTML(w, http.StatusOK, indexPage(d))
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRenderBadRequest(w, r) {
		return
	}
	cfg := configFromForm(r)

	d := h.page()
	d.Request = cfg.Normalize()
	res, err := h.runConfig(r.Context(), cfg)
	if err != nil {
		d.RunError = err.Error()
		renderHTML(w, http.StatusUnprocessableEntity, indexPage(d))
		return
	}
	d.Result = res
	if st, ok := pool.Describe(h.Provider); ok {
		d.Pool = &st
	}
	renderHTML(w, http.StatusOK, indexPage(d))
}

func (h *Handler) Evict(w http.ResponseWriter, r *http.Request) {
	msg := pool.EvictIdleConnections(h.Provider)
	d := h.page()
	d.EvictMessage = msg
	renderHTML(w, http.StatusOK, indexPage(d))
}

func (h *Handler) UpdatePool(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRenderBadRequest(w, r) {
		return
	}
	msg := pool.ResizePool(h.Provider, optionalInt(r, "minIdle"), optionalInt(r, "maxPool"))

	d := h.page()
	d.PoolMessage = msg
	st := pool.TestConnection(r.Context(), h.Provider)
	d.Conn = &st
	renderHTML(w, http.StatusOK, indexPage(d))
}

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	d := h.page()
	st := pool.TestConnection(r.Context(), h.Provider)
	d.Conn = &st
	renderHTML(w, http.StatusOK, indexPage(d))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// APIRun accepts a JSON run configuration and answers with the result.
func (h *Handler) APIRun(w http.ResponseWriter, r *http.Request) {
	cfg := h.Defaults
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run request: " + err.Error()})
		return
	}

	res, err := h.runConfig(r.Context(), cfg)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, runner.ErrNoProvider) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) APIPool(w http.ResponseWriter, r *http.Request) {
	st, ok := pool.Describe(h.Provider)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "pool statistics unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) APIEvict(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": pool.EvictIdleConnections(h.Provider)})
}

func (h *Handler) runConfig(ctx context.Context, cfg runner.Config) (*runner.Result, error) {
	rn := runner.NewRunner(cfg, h.Provider, nil)
	rn.Logger = h.Logger
	return rn.Run(ctx)
}

// configFromForm never rejects input: unparsable numbers become zero and are
// clamped by the runner, an unknown mode falls back to none.
func configFromForm(r *http.Request) runner.Config {
	mode, _ := runner.ParseResultMode(r.Form.Get("resultMode"))
	rate, _ := strconv.ParseFloat(strings.TrimSpace(r.Form.Get("rate")), 64)
	return runner.Config{
		SQL:         r.Form.Get("sqlText"),
		Iterations:  formInt(r, "iterations"),
		Concurrency: formInt(r, "concurrency"),
		DelayMs:     formInt(r, "delayMs"),
		TimeoutSec:  formInt(r, "timeoutSeconds"),
		ResultMode:  mode,
		MaxRows:     formInt(r, "maxRows"),
		TargetRate:  rate,
		Templated:   r.Form.Get("templated") != "",
	}
}

func formInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(r.Form.Get(key)))
	return v
}

func optionalInt(r *http.Request, key string) *int {
	raw := strings.TrimSpace(r.Form.Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

func parseFormOrRenderBadRequest(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
