// Package api provides the HTTP API for starting, cancelling and watching conversion jobs.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/listenup-transcoder/internal/service"
	"github.com/listenupapp/listenup-transcoder/internal/sse"
	"github.com/listenupapp/listenup-transcoder/internal/validation"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the services the handlers call.
type Services struct {
	Transcode   *service.TranscodeService
	Directories *service.DirectoryService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	db         Pinger
	sseManager *sse.Manager
	sseHandler *sse.Handler
	validator  *validation.Validator
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates the HTTP handler with all routes configured.
func NewServer(
	services *Services,
	db Pinger,
	sseManager *sse.Manager,
	sseHandler *sse.Handler,
	corsOrigins []string,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:   services,
		db:         db,
		sseManager: sseManager,
		sseHandler: sseHandler,
		validator:  validation.New(),
		router:     router,
		logger:     logger,
	}

	s.setupMiddleware(corsOrigins)

	humaConfig := huma.DefaultConfig("ListenUp Transcoder API", "1.0.0")
	humaConfig.Info.Description = "Mirrors FLAC libraries into MP3 trees."
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerJobRoutes()
	s.registerDirectoryRoutes()

	// The event stream is a plain handler; huma operations are request/response.
	router.Get("/api/v1/events", s.sseHandler.ServeHTTP)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(corsOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
