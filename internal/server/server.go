// Package server exposes the table pipeline over HTTP. Every endpoint is
// stateless: the caller sends the tables and configuration it wants evaluated.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/model"
)

// DefaultPreviewLimit is used when a preview request has no limit.
const DefaultPreviewLimit = 50

// maxBodyBytes bounds request bodies, uploads included.
const maxBodyBytes = 32 << 20

// Suggester produces chart specs for a data model.
type Suggester interface {
	Suggest(ctx context.Context, dm model.DataModel) ([]chart.Spec, error)
	Custom(ctx context.Context, dm model.DataModel, request string) (chart.Spec, error)
}

// Server holds the dependencies shared by the handlers.
type Server struct {
	logger    *slog.Logger
	validate  *validator.Validate
	suggester Suggester
	hint      func(error) string
}

// New builds a Server. suggester may be nil, in which case /api/suggest
// answers 503. hint maps an AI error to an actionable message and may be nil.
func New(logger *slog.Logger, suggester Suggester, hint func(error) string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		logger:    logger.With(slog.String("component", "http")),
		validate:  v,
		suggester: suggester,
		hint:      hint,
	}
}

// Routes returns the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(middleware.RequestSize(maxBodyBytes))
		r.Post("/import", s.handleImport)
		r.Post("/preview", s.handlePreview)
		r.Post("/finalize", s.handleFinalize)
		r.Post("/aggregate", s.handleAggregate)
		r.Post("/suggest", s.handleSuggest)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs one line per request with its status and duration.
// It must come after RequestID and RealIP.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "request completed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
