// Package bridge carries viewer request and response messages over HTTP and
// over newline-delimited JSON on stdio, so an external UI can drive the
// viewer the way the webview panels did.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sadopc/dbviewer/internal/diagram"
	"github.com/sadopc/dbviewer/internal/msg"
)

// maxBody caps a request envelope.
const maxBody = 4 << 20

// Handler answers one request. *viewer.Service implements it.
type Handler interface {
	Handle(ctx context.Context, req msg.Request) msg.Response
}

// Options configures a Server.
type Options struct {
	Logger         *slog.Logger
	Style          diagram.Style
	AllowedOrigins []string
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// Server exposes a Handler over HTTP.
type Server struct {
	h      Handler
	opts   Options
	logger *slog.Logger
}

// New returns a Server for h.
func New(h Handler, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Style == (diagram.Style{}) {
		opts.Style = diagram.DefaultStyle()
	}
	return &Server{h: h, opts: opts, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.opts.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Post("/messages", s.postMessage)
	r.Get("/schema", s.getSchema)
	r.Get("/diagram.svg", s.getDiagram)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down bridge")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("bridge listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, msg.ErrorMsg{Message: err.Error()})
		return
	}
	if len(body) > maxBody {
		s.writeResponse(w, http.StatusRequestEntityTooLarge, msg.ErrorMsg{Message: "request too large"})
		return
	}

	req, err := msg.DecodeRequest(body)
	if err != nil {
		s.logger.Warn("bad request", "error", err)
		s.writeResponse(w, http.StatusBadRequest, msg.ErrorMsg{Message: err.Error()})
		return
	}

	resp := s.dispatch(r.Context(), req)
	s.writeResponse(w, http.StatusOK, resp)
}

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	resp := s.dispatch(r.Context(), msg.ExtractSchemaMsg{})
	status := http.StatusOK
	if _, failed := resp.(msg.ErrorMsg); failed {
		status = http.StatusInternalServerError
	}
	s.writeResponse(w, status, resp)
}

func (s *Server) getDiagram(w http.ResponseWriter, r *http.Request) {
	resp := s.dispatch(r.Context(), msg.RenderDiagramMsg{})
	d, ok := resp.(msg.DisplayDiagramMsg)
	if !ok {
		s.writeResponse(w, http.StatusInternalServerError, resp)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := diagram.WriteSVG(w, d.Scene, s.opts.Style); err != nil {
		s.logger.Error("write svg", "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req msg.Request) msg.Response {
	start := time.Now()
	resp := s.h.Handle(ctx, req)
	if e, failed := resp.(msg.ErrorMsg); failed {
		s.logger.Error("request failed", "command", req.Command(), "error", e.Message)
	} else {
		s.logger.Debug("request served", "command", req.Command(), "response", resp.Command(), "duration", time.Since(start))
	}
	return resp
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, resp msg.Response) {
	data, err := msg.EncodeResponse(resp)
	if err != nil {
		s.logger.Error("encode response", "command", resp.Command(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
