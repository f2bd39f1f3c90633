package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"parkwise/internal/config"
	"parkwise/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Services are the application services behind the REST API.
type Services struct {
	Entries  *service.EntryService
	Parkings *service.ParkingService
	Users    *service.UserService
	Reports  *service.ReportService

	Notifications *service.NotificationService
}

// HTTPServer exposes the REST API used by the dashboard.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	tokens   TokenValidator
	limiter  *RateLimiter
	checks   map[string]ReadinessCheck
	server   *http.Server
	logger   zerolog.Logger
	handler  http.Handler
	shutdown time.Duration
}

func NewHTTPServer(cfg config.APIConfig, svc Services, tokens TokenValidator, limiter *RateLimiter, checks map[string]ReadinessCheck, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		tokens:   tokens,
		limiter:  limiter,
		checks:   checks,
		logger:   l,
		shutdown: cfg.HTTP.ShutdownTimeout,
	}
	srv.handler = srv.routes()

	readTimeout := cfg.HTTP.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.HTTP.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the fully wired router.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// baseMiddleware is applied to every route. The access log wraps panic
// recovery so a recovered panic is logged and counted as a 500.
func (s *HTTPServer) baseMiddleware() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		requestIDMiddleware,
		loggingMiddleware(&s.logger),
		recoverMiddleware(&s.logger),
		cors.New(cors.Options{
			AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders:   []string{requestIDHeader, "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler,
	}
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.baseMiddleware()...)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.tokens))
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Get("/auth/me", s.handleMe)

		r.Route("/entries", func(r chi.Router) {
			r.Post("/", s.handleRegisterEntry)
			r.Get("/", s.handleListEntries)
			r.Get("/active", s.handleListActiveEntries)
			r.Get("/{id}", s.handleGetEntry)
			r.Put("/{id}/exit", s.handleRegisterExit)
		})

		r.Route("/parkings", func(r chi.Router) {
			r.Get("/", s.handleListParkings)
			r.Get("/{code}", s.handleGetParking)
			r.Get("/{code}/entries", s.handleListParkingEntries)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/", s.handleCreateParking)
				r.Put("/{code}", s.handleUpdateParking)
				r.Delete("/{code}", s.handleDeleteParking)
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/outgoing", s.handleOutgoingReport)
			r.Get("/incoming", s.handleIncomingReport)
			r.Get("/occupancy", s.handleOccupancyReport)
			r.Get("/revenue", s.handleRevenueReport)
			r.Get("/entries", s.handleEntriesReport)
			r.Get("/{kind}/export", s.handleExportReport)
		})

		r.With(requireAdmin).Get("/notifications/failed", s.handleListFailedNotifications)

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.Put("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})
	})

	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if s.shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdown)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", map[string]string{"status": "alive"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(s.checks))
	ready := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Message: "not ready", Data: status})
		return
	}
	writeSuccess(w, http.StatusOK, "ready", status)
}
