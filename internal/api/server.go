// Package api exposes TaskFlow over a JSON REST interface.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"taskflow/internal/service"
)

// Options tunes transport details of the server.
type Options struct {
	// CookieSecure marks the session cookie Secure. Turn off only for plain-http development.
	CookieSecure bool
	// SessionTTL is the cookie lifetime; it should match the token lifetime.
	SessionTTL time.Duration
}

// Server routes HTTP requests to the auth and task services.
type Server struct {
	auth  *service.AuthService
	tasks *service.TaskService
	opts  Options
}

func New(auth *service.AuthService, tasks *service.TaskService, opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	return &Server{auth: auth, tasks: tasks, opts: opts}
}

// Handler builds the complete route table wrapped in logging and recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.withAuth(s.handleMe))
	mux.HandleFunc("PUT /api/auth/me", s.withAuth(s.handleUpdateMe))

	mux.HandleFunc("GET /api/tasks", s.withAuth(s.handleListTasks))
	mux.HandleFunc("GET /api/tasks/stats", s.withAuth(s.handleTaskStats))
	mux.HandleFunc("POST /api/tasks", s.withAuth(s.handleCreateTask))
	mux.HandleFunc("PUT /api/tasks/{id}", s.withAuth(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.withAuth(s.handleDeleteTask))

	return withLogging(withRecover(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[info] http server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
