package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"LegislativeClipping/internal/domain"
	"LegislativeClipping/internal/ports"
	"LegislativeClipping/internal/usecase"
)

const (
	defaultPerPage    = 20
	defaultRunTimeout = 30 * time.Minute
)

// Runner triggers pipeline runs on demand.
type Runner interface {
	ProcessRun(ctx context.Context, opts usecase.RunOptions) (usecase.RunReport, error)
}

// Handler serves the dashboard read API.
type Handler struct {
	reader   ports.NewsReader
	runner   Runner
	defaults usecase.RunOptions
	loc      *time.Location
	logger   *slog.Logger
	clock    func() time.Time

	runTimeout time.Duration
}

// NewHandler wires the reader and the optional pipeline runner. defaults bound
// runs started through the API.
func NewHandler(reader ports.NewsReader, runner Runner, defaults usecase.RunOptions, loc *time.Location, logger *slog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		reader:   reader,
		runner:   runner,
		defaults: defaults,
		loc:      loc,
		logger:   logger,
		clock:    time.Now,

		runTimeout: defaultRunTimeout,
	}
}

// Health reports database connectivity and the stored total.
func (h *Handler) Health(c *gin.Context) {
	stats, err := h.reader.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		h.respond(c, http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unavailable"}, "banco de dados indisponível")
		return
	}
	h.respond(c, http.StatusOK, gin.H{
		"status":         "healthy",
		"database":       "connected",
		"total_noticias": stats.Total,
	}, "API funcionando normalmente")
}

// Stats returns the dashboard metric cards.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.reader.Stats(c.Request.Context())
	if err != nil {
		h.internalError(c, "stats", err)
		return
	}
	h.respond(c, http.StatusOK, toStats(stats), "estatísticas obtidas com sucesso")
}

// ListNews serves GET /api/noticias with filters, ordering and pagination.
func (h *Handler) ListNews(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		h.respond(c, http.StatusBadRequest, nil, err.Error())
		return
	}

	page, err := h.reader.Query(c.Request.Context(), filter)
	if err != nil {
		h.internalError(c, "list news", err)
		return
	}

	items := make([]newsItem, 0, len(page.Items))
	for _, n := range page.Items {
		items = append(items, toItem(n, false))
	}
	h.respondPage(c, page, items, fmt.Sprintf("%d notícias encontradas", len(items)))
}

// GetNews serves GET /api/noticias/:id.
func (h *Handler) GetNews(c *gin.Context) {
	news, err := h.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.respond(c, http.StatusNotFound, nil, "notícia não encontrada")
			return
		}
		h.internalError(c, "get news", err)
		return
	}
	h.respond(c, http.StatusOK, toDetail(news), "detalhes da notícia obtidos com sucesso")
}

// Sources serves GET /api/fontes.
func (h *Handler) Sources(c *gin.Context) {
	sources, err := h.reader.SourceStats(c.Request.Context())
	if err != nil {
		h.internalError(c, "sources", err)
		return
	}
	h.respond(c, http.StatusOK, sources, fmt.Sprintf("%d fontes encontradas", len(sources)))
}

type runRequest struct {
	MaxExtraction *int  `json:"limite_extracao" binding:"omitempty,min=0,max=1000"`
	MaxScoring    *int  `json:"limite_scoring" binding:"omitempty,min=0,max=5000"`
	Notify        *bool `json:"notificar"`
}

// RunPipeline serves POST /api/pipeline/executar.
func (h *Handler) RunPipeline(c *gin.Context) {
	if h.runner == nil {
		h.respond(c, http.StatusServiceUnavailable, nil, "pipeline indisponível nesta instância")
		return
	}

	var req runRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respond(c, http.StatusBadRequest, nil, "corpo inválido: "+err.Error())
			return
		}
	}

	opts := h.defaults
	if req.MaxExtraction != nil {
		opts.MaxExtraction = *req.MaxExtraction
	}
	if req.MaxScoring != nil {
		opts.MaxScoring = *req.MaxScoring
	}
	if req.Notify != nil {
		opts.Notify = *req.Notify
	}

	// The run outlives a disconnected client; only the server-side timeout stops it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.runTimeout)
	defer cancel()

	report, err := h.runner.ProcessRun(ctx, opts)
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		h.respond(c, http.StatusConflict, nil, "pipeline já em execução")
	case err != nil:
		h.logger.Error("pipeline run failed", "error", err)
		c.JSON(http.StatusInternalServerError, envelope{
			Success:   false,
			Data:      report,
			Message:   "erro na execução do pipeline: " + err.Error(),
			Timestamp: h.clock(),
		})
	default:
		h.respond(c, http.StatusOK, report, "pipeline executado com sucesso")
	}
}

type listQuery struct {
	Sources  []string `form:"fonte"`
	Tiers    []string `form:"relevancia"`
	From     string   `form:"de" binding:"omitempty,datetime=2006-01-02"`
	To       string   `form:"ate" binding:"omitempty,datetime=2006-01-02"`
	MinScore *float64 `form:"min_score" binding:"omitempty,min=0,max=100"`
	Text     string   `form:"q" binding:"max=200"`
	Sort     string   `form:"ordenar" binding:"omitempty,oneof=score data"`
	Page     *int     `form:"pagina" binding:"omitempty,min=1,max=10000"`
	PerPage  *int     `form:"por_pagina" binding:"omitempty,min=1,max=100"`
}

func (h *Handler) parseFilter(c *gin.Context) (domain.NewsFilter, error) {
	filter := domain.NewsFilter{SortBy: domain.SortByScore, Page: 1, PageSize: defaultPerPage}

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return filter, fmt.Errorf("parâmetros inválidos: %w", err)
	}

	for _, raw := range splitList(q.Sources) {
		src, ok := domain.ParseSource(raw)
		if !ok {
			return filter, fmt.Errorf("fonte inválida: %s", raw)
		}
		filter.Sources = append(filter.Sources, src)
	}
	for _, raw := range splitList(q.Tiers) {
		tier, ok := domain.ParseTier(raw)
		if !ok {
			return filter, fmt.Errorf("relevância inválida: %s", raw)
		}
		filter.Tiers = append(filter.Tiers, tier)
	}

	if q.From != "" {
		from, err := time.ParseInLocation(time.DateOnly, q.From, h.loc)
		if err != nil {
			return filter, fmt.Errorf("data inicial inválida: %s", q.From)
		}
		filter.From = from
	}
	if q.To != "" {
		to, err := time.ParseInLocation(time.DateOnly, q.To, h.loc)
		if err != nil {
			return filter, fmt.Errorf("data final inválida: %s", q.To)
		}
		filter.To = to.AddDate(0, 0, 1).Add(-time.Second)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, fmt.Errorf("intervalo de datas inválido")
	}

	filter.MinScore = q.MinScore
	filter.Text = strings.TrimSpace(q.Text)
	if q.Sort == "data" {
		filter.SortBy = domain.SortByPublished
	}
	if q.Page != nil {
		filter.Page = *q.Page
	}
	if q.PerPage != nil {
		filter.PageSize = *q.PerPage
	}
	return filter, nil
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error("api request failed", "op", op, "error", err)
	h.respond(c, http.StatusInternalServerError, nil, "erro interno")
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
