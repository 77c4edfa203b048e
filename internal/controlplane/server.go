// Package controlplane provides the local HTTP API through which UIs and the
// CLI drive the task lifecycle.
package controlplane

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/finey-app/finey/internal/auth"
	"github.com/finey-app/finey/internal/lifecycle"
	"github.com/finey-app/finey/internal/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Store is the local database as seen by the API.
type Store interface {
	Ping(ctx context.Context) error
	ListAudit(ctx context.Context, taskID string, limit int) ([]models.AuditEntry, error)
}

// Server provides the HTTP API for Finey.
type Server struct {
	ctrl   *lifecycle.Controller
	store  Store
	addr   string
	logger *slog.Logger
	server *http.Server
	now    func() time.Time
}

// NewServer creates a new HTTP server.
func NewServer(ctrl *lifecycle.Controller, st Store, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctrl:   ctrl,
		store:  st,
		addr:   addr,
		logger: logger,
		now:    time.Now,
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.listTasks)
			r.Post("/", s.createTask)
			r.Post("/{id}/complete", s.completeTask)
			r.Post("/{id}/incomplete", s.markIncomplete)
			r.Delete("/{id}", s.deleteTask)
		})

		r.Get("/account", s.getAccount)
		r.Get("/account/payment-provider", s.getPaymentProvider)
		r.Put("/account/payment-provider", s.setPaymentProvider)
		r.Post("/session/reset", s.resetSession)
		r.Get("/audit", s.listAudit)
	})

	return otelhttp.NewHandler(r, "finey-daemon",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting finey daemon", slog.String("addr", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type sessionKey struct{}

// requireSession builds the request's session from its bearer token.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.respondError(w, r, ErrMissingBearer)
			return
		}
		sess, err := auth.SessionFromIDToken(strings.TrimSpace(raw), s.now())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return sess
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    s.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Int("status", status), slog.Any("error", err))
	}
	respondJSON(w, status, ErrorResponse{Error: err.Error()})
}
