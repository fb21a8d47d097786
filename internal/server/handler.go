// Package server exposes the compile service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fsscompiler/internal/failure"
	"fsscompiler/internal/job"
)

// maxDocumentBytes bounds the request body of a compile request.
const maxDocumentBytes = 1 << 20

// Compiler runs compile jobs. *job.Service implements it.
type Compiler interface {
	Compile(ctx context.Context, doc []byte) *job.Result
}

type handler struct {
	log     *zap.Logger
	svc     Compiler
	metrics *httpMetrics
}

// NewHandler returns the HTTP API. gatherer backs /metrics; the handler's own
// request metrics are registered with reg.
func NewHandler(log *zap.Logger, svc Compiler, reg prometheus.Registerer, gatherer prometheus.Gatherer) (http.Handler, error) {
	h := &handler{
		log:     log,
		svc:     svc,
		metrics: newHTTPMetrics(),
	}
	for _, c := range h.metrics.PrometheusCollectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering http metrics: %w", err)
		}
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		h.mwMetrics,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json; charset=utf-8"))
		r.Get("/", h.handleStatus)
		r.Post("/compile", h.handleCompile)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// handleStatus is the HTTP handler for the GET /api/ route.
func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, statusResponse{Status: "ok"})
}

// handleCompile is the HTTP handler for the POST /api/compile route.
func (h *handler) handleCompile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		h.respond(w, r, http.StatusRequestEntityTooLarge, errorResponse{Message: err.Error()})
		return
	}

	res := h.svc.Compile(r.Context(), body)
	h.respond(w, r, statusFor(res), res)
}

type errorResponse struct {
	Message string `json:"message"`
}

// statusFor maps a job result onto an HTTP status code.
func statusFor(res *job.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	var ae *job.AdmissionError
	if errors.As(res.Err, &ae) {
		return http.StatusServiceUnavailable
	}
	var pe *failure.ParseError
	if errors.As(res.Err, &pe) {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
}

func (h *handler) mwMetrics(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func(start time.Time) {
			label := prometheus.Labels{
				"method":        r.Method,
				"path":          routePattern(r),
				"response_code": fmt.Sprintf("%d", ww.Status()),
			}
			h.metrics.duration.With(label).Observe(time.Since(start).Seconds())
			h.metrics.requests.With(label).Inc()
		}(time.Now())

		next.ServeHTTP(ww, r)
	}
	return http.HandlerFunc(fn)
}

// routePattern returns the matched chi route, keeping metric cardinality
// bounded for unknown paths.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
