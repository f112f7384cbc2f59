// Package webapi exposes plan generation over HTTP.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"planrelay/pkg/config"
	"planrelay/pkg/logx"
	"planrelay/pkg/plan"
	"planrelay/pkg/version"
)

// PlanGenerator is the plan service as seen by the HTTP layer.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, req plan.PlanRequest) (plan.PlanDocument, error)
	Configured() bool
}

// Server is the relay HTTP server.
type Server struct {
	generator PlanGenerator
	cfg       *config.Config
	registry  *prometheus.Registry
	metrics   *httpMetrics
	logger    *logx.Logger
	handler   http.Handler
}

// NewServer creates the server and registers its HTTP metrics on registry.
// A nil registry gets a private one.
func NewServer(generator PlanGenerator, cfg *config.Config, registry *prometheus.Registry) *Server {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	s := &Server{
		generator: generator,
		cfg:       cfg,
		registry:  registry,
		metrics:   newHTTPMetrics(registry),
		logger:    logx.NewLogger("webapi"),
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var h http.Handler = mux
	h = newCORS(cfg.AllowedOrigins).Handler(h)
	h = originGuard(cfg.AllowedOrigins, s.logger, h)
	h = s.metrics.wrap(h)
	s.handler = withRequestID(h)
	return s
}

// Handler returns the full middleware stack. Used by tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RegisterRoutes sets up HTTP routes for the API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/{$}", s.handleRoot)
	mux.HandleFunc("POST /generate-plan", s.handleGeneratePlan)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// handleRoot implements GET /. Other methods on / get 404.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(msgOnline)); err != nil {
		s.logger.Debug("Failed to write root response: %v", err)
	}
}

// handleGeneratePlan implements POST /generate-plan.
func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logx.FromContext(ctx, "webapi")

	if !s.generator.Configured() {
		logger.Error("generate-plan rejected: %v", plan.ErrConfiguration)
		writeMessage(w, http.StatusInternalServerError, msgConfiguration)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req plan.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("request body exceeds %d bytes", tooLarge.Limit)
			writeMessage(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		logger.Info("undecodable request body: %v", err)
		writeMessage(w, http.StatusBadRequest, msgIncomplete)
		return
	}

	start := time.Now()
	doc, err := s.generator.GeneratePlan(ctx, req)
	if err != nil {
		s.writeGenerateError(w, logger, err)
		return
	}

	logger.Info("plan generated in %s (%d bytes)", time.Since(start).Round(time.Millisecond), len(doc))
	writeJSON(w, http.StatusOK, doc)
}

// writeGenerateError maps service errors onto the fixed response messages. Details stay in the log.
func (s *Server) writeGenerateError(w http.ResponseWriter, logger *logx.Logger, err error) {
	var upErr *plan.UpstreamError
	switch {
	case errors.Is(err, plan.ErrInvalidRequest):
		logger.Info("incomplete request: %v", err)
		writeMessage(w, http.StatusBadRequest, msgIncomplete)
	case errors.Is(err, plan.ErrConfiguration):
		logger.Error("generate-plan rejected: %v", err)
		writeMessage(w, http.StatusInternalServerError, msgConfiguration)
	case errors.As(err, &upErr):
		logger.Error("Error durante la llamada a la API de Gemini (%s, transient=%t): %v",
			upErr.Type, upErr.Type.IsTransient(), upErr.Err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	default:
		logger.Error("plan generation failed: %v", err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	UpstreamConfigured bool   `json:"upstream_configured"`
}

// handleHealth implements GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body, err := json.Marshal(healthResponse{
		Status:             "ok",
		Version:            version.Short(),
		UpstreamConfigured: s.generator.Configured(),
	})
	if err != nil {
		s.logger.Error("Failed to encode health response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully. In-flight
// requests get shutdown_timeout_sec to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		port = ln.Addr().String()
	}
	s.logger.Info(MsgListening, port)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Parent context is cancelled; shutdown needs a fresh one.
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	//nolint:contextcheck // Parent context is cancelled; we need a fresh context for shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}

// writeJSON writes body as-is with the JSON content type and no trailing newline.
func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeMessage writes {"message": msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	body, err := json.Marshal(map[string]string{"message": msg})
	if err != nil {
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, status, body)
}
