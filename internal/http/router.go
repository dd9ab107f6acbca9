package http

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lanternfly/imagehost/internal/config"
	"github.com/lanternfly/imagehost/internal/html"
	"github.com/lanternfly/imagehost/internal/images"
	"github.com/rs/zerolog"
)

// BlobPrefix is where a local storage root is served from.
const BlobPrefix = "/blobs"

type Server struct {
	config       *config.Config
	logger       zerolog.Logger
	imageHandler *images.Handler
	landingPage  *html.Page
	blobRoot     string
}

// NewServer wires the handlers. When blobRoot is non-empty its contents are
// served under BlobPrefix, so objects of a local store are fetchable.
func NewServer(
	cfg *config.Config,
	logger zerolog.Logger,
	imageHandler *images.Handler,
	landingPage *html.Page,
	blobRoot string,
) *Server {
	return &Server{
		config:       cfg,
		logger:       logger,
		imageHandler: imageHandler,
		landingPage:  landingPage,
		blobRoot:     blobRoot,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))

	r.Method(http.MethodGet, "/", s.landingPage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.RecoverJSON)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSONError(w, http.StatusNotFound, "Not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		})

		r.Post("/upload", s.imageHandler.HandleUpload)
		r.Get("/gallery", s.imageHandler.HandleGallery)
		r.Get("/health", s.HealthCheck)
	})

	if s.blobRoot != "" {
		fs := http.StripPrefix(BlobPrefix, http.FileServer(http.Dir(s.blobRoot)))
		r.Method(http.MethodGet, BlobPrefix+"/*", fs)
		r.Method(http.MethodHead, BlobPrefix+"/*", fs)
	}

	return r
}

// Middleware

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("request")
	})
}

// RecoverJSON turns a panic in an API handler into the API's JSON error
// envelope. http.ErrAbortHandler is re-raised for net/http to handle.
func (s *Server) RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			s.logger.Error().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("path", r.URL.Path).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")

			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}

// Handlers

// HealthCheck reports liveness only; it never touches the store.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": message})
}
