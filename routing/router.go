package routing

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Router wraps chi.Router with the handful of helpers the diagnostics
// surface needs.
type Router struct {
	mux chi.Router
}

// New creates a Router with request logging, panic recovery and RealIP.
func New(logger zerolog.Logger) *Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	return &Router{mux: r}
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc) { r.mux.Get(pattern, h) }

// Handle mounts a plain http.Handler for every method, e.g. promhttp.
func (r *Router) Handle(pattern string, h http.Handler) { r.mux.Handle(pattern, h) }

// NotFound replaces the 404 handler.
func (r *Router) NotFound(h http.HandlerFunc) { r.mux.NotFound(h) }

// MethodNotAllowed replaces the 405 handler.
func (r *Router) MethodNotAllowed(h http.HandlerFunc) { r.mux.MethodNotAllowed(h) }

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group sharing the parent's path.
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(&Router{mux: mx})
	})
}

// Prefix creates a sub-router under pattern.
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx})
	})
}

// ── Middleware ───────────────────────────────────────────────────────────────

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// RequestLogger logs one line per request at a level chosen by status:
// info below 400, warn below 500, error otherwise.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			path := req.URL.Path
			if rctx := chi.RouteContext(req.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					path = p
				}
			}

			event := logger.Info()
			if status >= 500 {
				event = logger.Error()
			} else if status >= 400 {
				event = logger.Warn()
			}

			event.
				Str("method", req.Method).
				Str("path", path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Str("client_ip", req.RemoteAddr).
				Int("bytes", ww.BytesWritten()).
				Msg("http_request")
		})
	}
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL parameter.
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler so Router can be passed to http.Server.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}
