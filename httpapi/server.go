// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package httpapi binds the catalog operations to JSON over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/poiesic/schedex"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/jobs"
	"github.com/poiesic/schedex/search"
)

// Backend is the set of catalog operations the API serves.
type Backend interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
	SmartSearch(ctx context.Context, req search.SmartRequest) (*search.SmartResponse, error)
	GetItem(ctx context.Context, number core.ItemNumber) (*core.CatalogItem, error)
	Health(ctx context.Context) (*schedex.Health, error)
	SearchFilters(ctx context.Context) (*search.FilterOptions, error)
	QueueXMLIngestion(ctx context.Context, source string, force bool) (string, error)
	QueueEmbeddingGeneration(ctx context.Context, items []core.ItemNumber, batchSize int, force bool) (string, error)
	QueueFullPipeline(ctx context.Context, source string, force bool) (string, error)
	JobStatus(ctx context.Context, id string) (*core.Job, error)
	CancelJob(ctx context.Context, id string) error
	QueueStats(ctx context.Context) (*core.QueueStats, error)
	IngestionLogs(ctx context.Context, limit, offset int) (*jobs.LogPage, error)
	CleanJobs(ctx context.Context) (int, error)
}

var _ Backend = (*schedex.Catalog)(nil)

// Server serves the catalog API.
type Server struct {
	echo    *echo.Echo
	backend Backend
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.echo.GET("/metrics", echo.WrapHandler(h))
	}
}

// New creates a Server for backend.
func New(backend Backend, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second

	s := &Server{
		echo:    e,
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "httpapi")

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	api := e.Group("/api/v1", middleware.CORS())
	api.GET("/health", s.health)
	api.GET("/search", s.search)
	api.GET("/search/smart", s.smartSearch)
	api.GET("/search/filters", s.searchFilters)
	api.GET("/items/:number", s.getItem)

	admin := api.Group("/admin")
	admin.POST("/ingest/xml", s.queueXML)
	admin.POST("/ingest/embeddings", s.queueEmbeddings)
	admin.POST("/ingest/pipeline", s.queuePipeline)
	admin.GET("/jobs/stats", s.queueStats)
	admin.POST("/jobs/clean", s.cleanJobs)
	admin.GET("/jobs/:id", s.jobStatus)
	admin.DELETE("/jobs/:id", s.cancelJob)
	admin.GET("/ingestion-logs", s.ingestionLogs)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", "addr", addr)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		msg = http.StatusText(status)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	case errors.Is(err, core.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrUnavailable):
		status = http.StatusServiceUnavailable
		msg = http.StatusText(status)
	default:
		s.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorDTO{Error: msg})
	}
	if err != nil {
		s.logger.Error("failed to write error response", "err", err)
	}
}

func badRequest(format string, args ...any) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) health(c echo.Context) error {
	h, err := s.backend.Health(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newHealthDTO(h))
}

func bindRequest(c echo.Context) (search.Request, error) {
	var (
		req                 search.Request
		mode, sortBy, ptype string
		minFee, maxFee      float64
	)
	err := echo.QueryParamsBinder(c).
		String("q", &req.Query).
		String("mode", &mode).
		String("sort", &sortBy).
		Int("limit", &req.Limit).
		Int("offset", &req.Offset).
		String("provider_type", &ptype).
		String("category", &req.Filters.Category).
		Float64("min_fee", &minFee).
		Float64("max_fee", &maxFee).
		Bool("include_inactive", &req.Filters.IncludeInactive).
		BindError()
	if err != nil {
		return req, badRequest("invalid query parameters: %v", err)
	}
	req.Mode = search.Mode(mode)
	req.SortBy = search.SortKey(sortBy)
	req.Filters.ProviderType = core.ProviderType(ptype)
	if c.QueryParam("min_fee") != "" {
		req.Filters.MinFee = &minFee
	}
	if c.QueryParam("max_fee") != "" {
		req.Filters.MaxFee = &maxFee
	}
	return req, nil
}

func (s *Server) search(c echo.Context) error {
	req, err := bindRequest(c)
	if err != nil {
		return err
	}
	resp, err := s.backend.Search(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSearchResponseDTO(resp))
}

func (s *Server) smartSearch(c echo.Context) error {
	base, err := bindRequest(c)
	if err != nil {
		return err
	}
	req := search.SmartRequest{
		Request:   base,
		Intent:    search.Intent(c.QueryParam("intent")),
		TextQuery: c.QueryParam("text"),
	}
	if raw := c.QueryParam("item_number"); raw != "" {
		n, err := core.ParseItemNumber(raw)
		if err != nil {
			return err
		}
		req.ItemNumber = n
	}
	resp, err := s.backend.SmartSearch(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSmartResponseDTO(resp))
}

func (s *Server) searchFilters(c echo.Context) error {
	opts, err := s.backend.SearchFilters(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newFilterOptionsDTO(opts))
}

func (s *Server) getItem(c echo.Context) error {
	n, err := core.ParseItemNumber(c.Param("number"))
	if err != nil {
		return err
	}
	item, err := s.backend.GetItem(c.Request().Context(), n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newItemDTO(item))
}

func (s *Server) queueXML(c echo.Context) error {
	var body ingestRequest
	if err := c.Bind(&body); err != nil {
		return err
	}
	id, err := s.backend.QueueXMLIngestion(c.Request().Context(), body.Source, body.ForceReprocess)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, jobQueuedDTO{JobID: id})
}

func (s *Server) queueEmbeddings(c echo.Context) error {
	var body embeddingRequest
	if err := c.Bind(&body); err != nil {
		return err
	}
	id, err := s.backend.QueueEmbeddingGeneration(c.Request().Context(), body.ItemNumbers, body.BatchSize, body.Force)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, jobQueuedDTO{JobID: id})
}

func (s *Server) queuePipeline(c echo.Context) error {
	var body ingestRequest
	if err := c.Bind(&body); err != nil {
		return err
	}
	id, err := s.backend.QueueFullPipeline(c.Request().Context(), body.Source, body.ForceReprocess)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, jobQueuedDTO{JobID: id})
}

func (s *Server) jobStatus(c echo.Context) error {
	job, err := s.backend.JobStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newJobDTO(job))
}

func (s *Server) cancelJob(c echo.Context) error {
	if err := s.backend.CancelJob(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) queueStats(c echo.Context) error {
	stats, err := s.backend.QueueStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newQueueStatsDTO(stats))
}

func (s *Server) ingestionLogs(c echo.Context) error {
	var limit, offset int
	err := echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError()
	if err != nil {
		return badRequest("invalid query parameters: %v", err)
	}
	page, err := s.backend.IngestionLogs(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newLogPageDTO(page))
}

func (s *Server) cleanJobs(c echo.Context) error {
	n, err := s.backend.CleanJobs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cleanedDTO{Removed: n})
}
