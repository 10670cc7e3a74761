package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method   string
	segments []string
	handler  http.Handler
}

// Router is a small method-aware router. Exact paths are looked up directly;
// patterns containing "*" are tried in registration order, so register the
// more specific ones first.
type Router struct {
	routes         map[string]http.Handler // key = METHOD:PATH
	paths          map[string]bool         // registered exact paths
	wildcards      []route
	logger         *slog.Logger
	allowedOrigins map[string]bool
}

func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		routes:         make(map[string]http.Handler),
		paths:          make(map[string]bool),
		logger:         logger,
		allowedOrigins: make(map[string]bool),
	}
}

// AllowOrigins enables CORS for the given origins. "*" allows any origin.
func (r *Router) AllowOrigins(origins ...string) {
	for _, o := range origins {
		r.allowedOrigins[strings.TrimRight(o, "/")] = true
	}
}

// ServeHTTP dispatches the request and logs one line per request.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	preflight := r.applyCORS(lrw, req)
	if preflight {
		lrw.WriteHeader(http.StatusNoContent)
	} else if h := r.lookup(req.Method, req.URL.Path); h != nil {
		h.ServeHTTP(lrw, req)
	} else if r.pathExists(req.URL.Path) {
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	level := slog.LevelInfo
	if lrw.statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	r.logger.LogAttrs(req.Context(), level, "request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", lrw.statusCode),
		slog.Duration("duration", time.Since(start)),
	)
}

func (r *Router) lookup(method, path string) http.Handler {
	if h, ok := r.routes[method+":"+path]; ok {
		return h
	}
	for _, rt := range r.wildcards {
		if rt.method == method && matchSegments(path, rt.segments) {
			return rt.handler
		}
	}
	return nil
}

func (r *Router) pathExists(path string) bool {
	if r.paths[path] {
		return true
	}
	for _, rt := range r.wildcards {
		if matchSegments(path, rt.segments) {
			return true
		}
	}
	return false
}

// applyCORS sets CORS headers for allowed origins and reports whether the
// request is a preflight that has been fully answered.
func (r *Router) applyCORS(w http.ResponseWriter, req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" || !(r.allowedOrigins["*"] || r.allowedOrigins[origin]) {
		return false
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Credentials", "true")
	if req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "600")
		return true
	}
	return false
}

// matchSegments checks a request path against a pattern split into segments.
// "*" matches exactly one segment, except as the final segment where it
// matches one or more remaining segments.
func matchSegments(requestPath string, routeSegments []string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")

	last := len(routeSegments) - 1
	if last >= 0 && routeSegments[last] == "*" {
		if len(requestSegments) <= last || requestSegments[last] == "" {
			return false
		}
		for i := 0; i < last; i++ {
			if routeSegments[i] != "*" && requestSegments[i] != routeSegments[i] {
				return false
			}
		}
		return true
	}

	if len(requestSegments) != len(routeSegments) {
		return false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return false
			}
			continue
		}
		if requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler http.Handler) {
	if strings.Contains(path, "*") {
		r.wildcards = append(r.wildcards, route{
			method:   method,
			segments: strings.Split(strings.Trim(path, "/"), "/"),
			handler:  handler,
		})
		return
	}
	r.routes[method+":"+path] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc) {
	r.register(http.MethodGet, path, http.HandlerFunc(handler))
}
func (r *Router) POST(path string, handler HandlerFunc) {
	r.register(http.MethodPost, path, http.HandlerFunc(handler))
}
// Handle registers an http.Handler, e.g. the swagger UI.
func (r *Router) Handle(method, path string, handler http.Handler) {
	r.register(method, path, handler)
}

// --- Start server ---

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		r.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}
