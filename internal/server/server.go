package server

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/invoice-reader/internal/export"
	"github.com/joseph-ayodele/invoice-reader/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
)

// FileProcessor is the part of the pipeline the UI depends on.
type FileProcessor interface {
	ProcessFile(ctx context.Context, sess *session.Session, name, path string) pipeline.Outcome
}

// Metrics is what the UI reports besides per-file outcomes.
type Metrics interface {
	ObserveUpload()
	SetLiveSessions(n int)
	Handler() http.Handler
}

type Options struct {
	Processor      FileProcessor
	Sessions       *session.Manager
	Exporter       *export.Service
	Metrics        Metrics // optional
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Handler serves the invoice UI.
type Handler struct {
	processor FileProcessor
	sessions  *session.Manager
	exporter  *export.Service
	metrics   Metrics
	maxUpload int64
	logger    *slog.Logger
	page      *template.Template
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exporter := opts.Exporter
	if exporter == nil {
		exporter = export.NewService(logger)
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &Handler{
		processor: opts.Processor,
		sessions:  opts.Sessions,
		exporter:  exporter,
		metrics:   opts.Metrics,
		maxUpload: maxUpload,
		logger:    logger,
		page:      pageTemplate,
	}
}

// SetupRouter wires routes and middleware.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", h.Index)
	r.Post("/upload", h.Upload)
	r.Get("/export.csv", h.ExportCSV)
	r.Get("/export.xlsx", h.ExportXLSX)
	r.Get("/results", h.Results)
	r.Post("/session/end", h.EndSession)
	r.Get("/healthz", h.Healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http.request",
				"req_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
