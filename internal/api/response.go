package api

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"LegislativeClipping/internal/domain"
)

// envelope is the response shape shared by every endpoint.
type envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Meta      *pageMeta `json:"meta,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type pageMeta struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

func (h *Handler) respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{
		Success:   status < 400,
		Data:      data,
		Message:   message,
		Timestamp: h.clock(),
	})
}

func (h *Handler) respondPage(c *gin.Context, page domain.NewsPage, items []newsItem, message string) {
	totalPages := 0
	if page.PageSize > 0 {
		totalPages = (page.Total + page.PageSize - 1) / page.PageSize
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Meta: &pageMeta{
			Total:      page.Total,
			Page:       page.Page,
			PerPage:    page.PageSize,
			TotalPages: totalPages,
			HasNext:    page.Page < totalPages,
			HasPrev:    page.Page > 1,
		},
		Message:   message,
		Timestamp: h.clock(),
	})
}

type scoring struct {
	Score          float64            `json:"score_interesse"`
	Risk           float64            `json:"score_risco"`
	Tier           domain.Tier        `json:"relevancia"`
	MainAxis       string             `json:"eixo_principal"`
	Keywords       []string           `json:"termos_encontrados"`
	Terms          []domain.TermMatch `json:"termos_detalhes,omitempty"`
	RulesetVersion string             `json:"scoring_version"`
	ScoredAt       *time.Time         `json:"scoring_data,omitempty"`
}

type newsItem struct {
	ID               string                  `json:"id"`
	Title            string                  `json:"titulo"`
	Link             string                  `json:"link"`
	Summary          string                  `json:"resumo"`
	Source           domain.Source           `json:"fonte"`
	CollectedAt      time.Time               `json:"data_coleta"`
	PublishedAt      time.Time               `json:"data_publicacao"`
	WordCount        int                     `json:"word_count"`
	ExtractionStatus domain.ExtractionStatus `json:"extracao"`
	Scoring          *scoring                `json:"scoring"`
}

type newsDetail struct {
	newsItem
	Content    string `json:"conteudo"`
	HasContent bool   `json:"tem_conteudo"`
}

func toItem(n domain.StoredNews, withTerms bool) newsItem {
	item := newsItem{
		ID:               n.Record.ID,
		Title:            n.Record.Title,
		Link:             n.Record.URL,
		Summary:          n.Record.Summary,
		Source:           n.Record.Source,
		CollectedAt:      n.Record.CollectedAt,
		PublishedAt:      n.Record.PublishedAt,
		WordCount:        n.Record.WordCount,
		ExtractionStatus: n.Record.ExtractionStatus,
	}
	if n.Scored != nil {
		item.Scoring = &scoring{
			Score:          n.Scored.Score,
			Risk:           n.Scored.RiskScore,
			Tier:           n.Scored.Tier,
			MainAxis:       n.Scored.MainAxis,
			Keywords:       n.Scored.MatchedKeywords,
			RulesetVersion: n.Scored.RulesetVersion,
			ScoredAt:       n.ScoredAt,
		}
		if withTerms {
			item.Scoring.Terms = n.Scored.Terms
		}
	}
	return item
}

func toDetail(n domain.StoredNews) newsDetail {
	return newsDetail{
		newsItem:   toItem(n, true),
		Content:    n.Record.Content,
		HasContent: len(n.Record.Content) > 100,
	}
}

type statsView struct {
	Total          int                   `json:"total_noticias"`
	BySource       map[domain.Source]int `json:"por_fonte"`
	ByTier         map[string]int        `json:"por_relevancia"`
	WithContent    int                   `json:"com_conteudo"`
	Scored         int                   `json:"com_scoring"`
	ExtractionRate float64               `json:"taxa_extracao"`
	ScoringRate    float64               `json:"taxa_scoring"`
	First          *time.Time            `json:"primeira_coleta,omitempty"`
	Last           *time.Time            `json:"ultima_coleta,omitempty"`
}

func toStats(s domain.Stats) statsView {
	return statsView{
		Total:          s.Total,
		BySource:       s.BySource,
		ByTier:         s.ByTier,
		WithContent:    s.WithContent,
		Scored:         s.Scored,
		ExtractionRate: percent(s.WithContent, s.Total),
		ScoringRate:    percent(s.Scored, s.Total),
		First:          s.First,
		Last:           s.Last,
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
