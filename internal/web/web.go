// Package web serves the browser console. Each page load opens a session
// with its own state; actions stream their display changes back as
// newline-delimited JSON patches.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"swagtest/internal/console"
	"swagtest/internal/server"
	"swagtest/internal/session"
	"swagtest/internal/view"
)

const DefaultMaxSessions = 256

type Options struct {
	// MaxSessions bounds the live page sessions; the least recently used
	// one is dropped beyond it.
	MaxSessions int
	// Location prefills the document location box.
	Location string
}

type page struct {
	id   string
	ctrl *console.Controller
}

type Handler struct {
	svc      console.Service
	logger   *zap.Logger
	pages    *lru.Cache[string, *page]
	location string
	router   chi.Router
}

func New(svc console.Service, opts Options, logger *zap.Logger) (*Handler, error) {
	size := opts.MaxSessions
	if size <= 0 {
		size = DefaultMaxSessions
	}
	pages, err := lru.NewWithEvict[string, *page](size, func(id string, _ *page) {
		logger.Debug("page session evicted", zap.String("session", id))
	})
	if err != nil {
		return nil, err
	}

	h := &Handler{svc: svc, logger: logger, pages: pages, location: opts.Location}

	static, err := fs.Sub(view.Static, "static")
	if err != nil {
		return nil, err
	}

	r := server.NewRouter(logger)
	r.Get("/", h.index)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Route("/s/{sid}", func(r chi.Router) {
		r.Post("/extract", h.extract)
		r.Post("/generate", h.single((*console.Controller).GenerateOne))
		r.Post("/execute", h.single((*console.Controller).ExecuteOne))
		r.Post("/generate-all", h.bulk((*console.Controller).GenerateAll))
		r.Post("/execute-all", h.bulk((*console.Controller).ExecuteAll))
		r.Post("/download", h.bulk((*console.Controller).DownloadAll))
	})
	h.router = r
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Sessions is the number of live page sessions.
func (h *Handler) Sessions() int {
	return h.pages.Len()
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	p := &page{
		id:   uuid.NewString(),
		ctrl: console.New(h.svc, session.New(), nil, h.logger),
	}
	h.pages.Add(p.id, p)

	loc := r.URL.Query().Get("url")
	if loc == "" {
		loc = h.location
	}
	html, err := view.Page(view.PageData{Session: p.id, Location: loc})
	if err != nil {
		h.logger.Error("failed to render page", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

// lookup resolves the page session of r. It answers for itself when the
// session is gone.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*page, bool) {
	p, ok := h.pages.Get(chi.URLParam(r, "sid"))
	if !ok {
		out := newStream(w, h.logger)
		w.WriteHeader(http.StatusNotFound)
		out.Alert("This page session has expired. Reload the page to start again.")
		return nil, false
	}
	return p, true
}

// open binds the page's controller to a response stream.
func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*console.Controller, bool) {
	p, ok := h.lookup(w, r)
	if !ok {
		return nil, false
	}
	return p.ctrl.With(newStream(w, h.logger)), true
}

// detach keeps an issued operation running when the browser goes away.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (h *Handler) extract(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SwaggerURL string `json:"swagger_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		server.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctrl, ok := h.open(w, r)
	if !ok {
		return
	}
	h.done("extract", ctrl.Extract(detach(r), in.SwaggerURL))
}

func (h *Handler) single(op func(*console.Controller, context.Context, string, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Path   string `json:"path"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Path == "" || in.Method == "" {
			server.Error(w, http.StatusBadRequest, "path and method are required")
			return
		}
		ctrl, ok := h.open(w, r)
		if !ok {
			return
		}
		h.done(r.URL.Path, op(ctrl, detach(r), in.Path, in.Method))
	}
}

func (h *Handler) bulk(op func(*console.Controller, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := h.open(w, r)
		if !ok {
			return
		}
		h.done(r.URL.Path, op(ctrl, detach(r)))
	}
}

// done logs the outcome of an operation. Failures were already shown.
func (h *Handler) done(op string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, console.ErrBusy):
		h.logger.Debug("duplicate submission ignored", zap.String("op", op))
	default:
		h.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))
	}
}
