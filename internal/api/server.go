package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/movierank/internal/app"
	"github.com/JakeFAU/movierank/internal/config"
	"github.com/JakeFAU/movierank/internal/id/uuid"
	"github.com/JakeFAU/movierank/internal/metrics"
	"github.com/JakeFAU/movierank/internal/ranking"
)

const maxBatchBytes = 32 << 20

// Rankings is the import and query surface used by the handlers.
type Rankings interface {
	Import(ctx context.Context, records []ranking.Record) (ranking.Report, error)
	MoviesByCountry(ctx context.Context, country string) ([]ranking.CountryMovie, error)
	Movie(ctx context.Context, id int64) (ranking.MovieDetail, error)
	Ready(ctx context.Context) error
}

// Reports renders a country's HTML report.
type Reports interface {
	Render(ctx context.Context, country string) ([]byte, error)
}

// Crawler runs a scrape-and-import pass.
type Crawler interface {
	Crawl(ctx context.Context, codes []string) (app.CrawlResult, error)
}

// Server wires HTTP handlers to the importer, report generator, and crawler.
type Server struct {
	router   chi.Router
	rankings Rankings
	reports  Reports
	crawler  Crawler
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. crawler may be nil,
// in which case POST /v1/crawl is not mounted.
func NewServer(rankings Rankings, reports Reports, crawler Crawler, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		rankings: rankings,
		reports:  reports,
		crawler:  crawler,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(uuid.New()))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(cfg.RequestTimeout()))
			r.Post("/rankings/bulk", s.importBatch)
			r.Get("/countries/{name}/movies", s.countryMovies)
			r.Get("/countries/{name}/report", s.countryReport)
			r.Get("/movies/{id}", s.getMovie)
		})
		// Crawls run far longer than the request timeout.
		if crawler != nil {
			r.Post("/crawl", s.crawl)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.rankings.Ready(r.Context()); err != nil {
		s.logger.Warn("Readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) importBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := ranking.DecodeBatch(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if batch.Movies == nil {
		writeError(w, http.StatusBadRequest, "missing movies")
		return
	}
	report, err := s.rankings.Import(r.Context(), batch.Movies)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) countryMovies(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	movies, err := s.rankings.MoviesByCountry(r.Context(), name)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

func (s *Server) countryReport(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	page, err := s.reports.Render(r.Context(), name)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		s.logger.Error("Report write failed", zap.Error(err))
	}
}

func (s *Server) getMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	movie, err := s.rankings.Movie(r.Context(), id)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

type crawlRequest struct {
	Countries []string `json:"countries"`
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	result, err := s.crawler.Crawl(r.Context(), req.Countries)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, app.ErrCrawlInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		var ie *ranking.ImportError
		if errors.As(err, &ie) {
			writeImportError(w, err)
			return
		}
		s.logger.Error("Crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type importErrorResponse struct {
	Error string            `json:"error"`
	Kind  ranking.ErrorKind `json:"kind"`
	Index *int              `json:"index,omitempty"`
}

func writeImportError(w http.ResponseWriter, err error) {
	var ie *ranking.ImportError
	if !errors.As(err, &ie) {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := importErrorResponse{Error: ie.Error(), Kind: ie.Kind}
	if ie.Index != ranking.NoIndex {
		idx := ie.Index
		resp.Index = &idx
	}
	writeJSON(w, statusFor(err), resp)
}

func writeQueryError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ranking.ErrMalformedRecord):
		return http.StatusBadRequest
	case errors.Is(err, ranking.ErrConstraintViolation):
		return http.StatusConflict
	case errors.Is(err, ranking.ErrCountryNotFound),
		errors.Is(err, ranking.ErrNoRankings),
		errors.Is(err, ranking.ErrMovieNotFound):
		return http.StatusNotFound
	case errors.Is(err, ranking.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// pathParam returns an unescaped, trimmed route parameter.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("JSON encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
