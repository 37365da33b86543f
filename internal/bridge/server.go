// Package bridge is the local IPC transport between a running fileopen host
// and its clients: the interface layer, and secondary invocations that
// forward open requests.
//
// The bridge speaks HTTP/1.1 over a unix socket (or a loopback TCP port):
//
//	POST /invoke/{command}   run a command, JSON arguments in the body
//	GET  /events             server-sent file-opened events
//	POST /lifecycle/opened   deliver an open-file signal {"locators":[...]}
//	GET  /health             host status
//	GET  /metrics            Prometheus exposition
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/roach88/fileopen/internal/app"
	"github.com/roach88/fileopen/internal/command"
	"github.com/roach88/fileopen/internal/listener"
	"github.com/roach88/fileopen/internal/metrics"
	"github.com/roach88/fileopen/internal/notify"
	"github.com/roach88/fileopen/internal/pending"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// shutdownTimeout bounds graceful shutdown in Serve.
const shutdownTimeout = 5 * time.Second

// Error codes carried in error envelopes.
const (
	CodeBadRequest     = "bad_request"
	CodeUnknownCommand = "unknown_command"
	CodeInvalidArgs    = "invalid_args"
	CodeUnsupported    = "unsupported"
	CodeStorePoisoned  = "store_poisoned"
	CodeCommandFailed  = "command_failed"
)

// Host is the part of the fileopen host the bridge exposes.
type Host interface {
	Deliver(ctx context.Context, locators []string) (listener.Delivery, error)
	Invoke(ctx context.Context, name string, args json.RawMessage) (any, error)
	Subscribe() *notify.Subscription
	Unsubscribe(sub *notify.Subscription)
	Status() (app.Status, error)
}

// Envelope wraps every /invoke and /lifecycle response.
type Envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Health is the /health response.
type Health struct {
	Status      string   `json:"status"`
	Listener    string   `json:"listener"`
	Pending     int      `json:"pending"`
	Subscribers int      `json:"subscribers"`
	Commands    []string `json:"commands"`
}

// OpenedRequest is the /lifecycle/opened request body.
type OpenedRequest struct {
	Locators []string `json:"locators"`
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics mounts /metrics.
func WithMetrics(enabled bool) ServerOption {
	return func(s *Server) {
		s.metrics = enabled
	}
}

// Server serves the bridge routes for a Host.
type Server struct {
	host    Host
	logger  *slog.Logger
	metrics bool
}

// NewServer creates a server. A nil logger uses slog.Default().
func NewServer(host Host, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{host: host, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler for all bridge routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoke/{command}", s.handleInvoke)
	mux.HandleFunc("POST /lifecycle/opened", s.handleOpened)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	return s.logRequests(mux)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. Open event streams end when ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("bridge listening", "network", ln.Addr().Network(), "address", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve bridge: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown bridge: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve bridge: %w", err)
	}
	return nil
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("command")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	var args json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			s.sendError(w, http.StatusBadRequest, CodeInvalidArgs, "request body is not valid JSON")
			return
		}
		args = body
	}

	result, err := s.host.Invoke(r.Context(), name, args)
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("command failed", "command", name, "error", err)
		}
		s.sendError(w, status, code, err.Error())
		return
	}
	s.sendData(w, result)
}

func (s *Server) handleOpened(w http.ResponseWriter, r *http.Request) {
	var req OpenedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	d, err := s.host.Deliver(r.Context(), req.Locators)
	if err != nil {
		status, code := classify(err)
		s.sendError(w, status, code, err.Error())
		return
	}
	s.sendData(w, d)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, CodeBadRequest, "streaming not supported")
		return
	}

	// Attach before the headers go out: a client that saw the 200 is a
	// currently-attached consumer.
	sub := s.host.Subscribe()
	defer s.host.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := notify.MarshalEvent(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.host.Status()
	if err != nil {
		status, code := classify(err)
		s.sendError(w, status, code, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, Health{
		Status:      "ok",
		Listener:    st.Listener,
		Pending:     st.Pending,
		Subscribers: st.Subscribers,
		Commands:    st.Commands,
	})
}

// classify maps a command error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		return http.StatusNotFound, CodeUnknownCommand
	case errors.Is(err, command.ErrInvalidArgs):
		return http.StatusBadRequest, CodeInvalidArgs
	case errors.Is(err, command.ErrUnsupported):
		return http.StatusNotImplemented, CodeUnsupported
	case errors.Is(err, pending.ErrPoisoned):
		return http.StatusInternalServerError, CodeStorePoisoned
	default:
		return http.StatusInternalServerError, CodeCommandFailed
	}
}

func (s *Server) sendData(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, CodeCommandFailed, fmt.Sprintf("encode result: %v", err))
		return
	}
	s.sendJSON(w, http.StatusOK, Envelope{Status: "ok", Data: data})
}

func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	s.sendJSON(w, status, Envelope{
		Status: "error",
		Error:  &ErrorBody{Code: code, Message: message},
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("bridge request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
