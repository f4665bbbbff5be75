// Package webcore provides the base HTTP server, middleware chain, and
// JSON response helpers used by the paydesk API.
package webcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Config holds the HTTP-level settings of the server.
type Config struct {
	Name         string
	Port         int
	Verbose      bool
	AllowOrigins []string // empty means reflect any Origin
}

// Server wraps a chi router with the common middleware stack and
// provides lifecycle management.
type Server struct {
	Config *Config
	Router *chi.Mux
	Logger *slog.Logger
	level  *slog.LevelVar
	mw     *Middleware
	mu     sync.RWMutex // protects Config fields during runtime updates
}

// New creates a Server with a JSON slog logger and the default middleware.
func New(cfg *Config) *Server {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	if cfg.Verbose {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	r := chi.NewRouter()
	mw := NewMiddleware(cfg, logger)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)

	return &Server{
		Config: cfg,
		Router: r,
		Logger: logger,
		level:  level,
		mw:     mw,
	}
}

// Middleware returns the server's middleware instance, for mounting
// idempotency on route groups and for the admin handlers.
func (s *Server) Middleware() *Middleware {
	return s.mw
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (s *Server) GetConfig() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"name":    s.Config.Name,
		"port":    s.Config.Port,
		"verbose": s.Config.Verbose,
	}
}

// UpdateConfig applies runtime configuration updates. Only verbose can
// change while serving; every key is validated before any is applied.
func (s *Server) UpdateConfig(updates map[string]any) error {
	var verbose *bool
	for k, v := range updates {
		switch k {
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			verbose = &b
		case "name", "port":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if verbose != nil {
		s.Config.Verbose = *verbose
		s.mw.SetVerbose(*verbose)
		if *verbose {
			s.level.Set(slog.LevelDebug)
		} else {
			s.level.Set(slog.LevelInfo)
		}
	}
	return nil
}

// Serve starts the HTTP server and blocks until ctx is cancelled or a
// shutdown signal arrives.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("starting server", "name", s.Config.Name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	s.Logger.Info("shutting down server", "name", s.Config.Name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response of the form {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"error": message})
}

// ValidationError writes a 400 response carrying field-level messages.
func ValidationError(w http.ResponseWriter, message string, fields map[string]string) {
	JSON(w, http.StatusBadRequest, map[string]any{
		"error":  message,
		"errors": fields,
	})
}
