package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source enumerates the government portals the collector reads.
type Source string

const (
	SourceCamara     Source = "Câmara"
	SourceSenado     Source = "Senado"
	SourceAgenciaGov Source = "Agência Gov"
)

// Sources lists every known source in display order.
var Sources = []Source{SourceCamara, SourceSenado, SourceAgenciaGov}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceCamara, SourceSenado, SourceAgenciaGov:
		return true
	}
	return false
}

// ParseSource accepts display names and the slugs used in config and query strings.
func ParseSource(value string) (Source, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "câmara", "camara", "camara_dos_deputados":
		return SourceCamara, true
	case "senado", "senado_federal":
		return SourceSenado, true
	case "agência gov", "agencia gov", "agencia_gov", "agenciagov":
		return SourceAgenciaGov, true
	}
	return "", false
}

// ExtractionStatus reflects whether the article body was retrieved.
type ExtractionStatus string

const (
	ExtractionPending ExtractionStatus = "pending"
	ExtractionFull    ExtractionStatus = "full"
	ExtractionPartial ExtractionStatus = "partial"
	ExtractionFailed  ExtractionStatus = "failed"
)

// Tier is the coarse relevance bucket shown on the dashboard.
type Tier string

const (
	TierAlta  Tier = "Alta"
	TierMedia Tier = "Média"
	TierBaixa Tier = "Baixa"
)

// Tiers lists tiers from most to least relevant.
var Tiers = []Tier{TierAlta, TierMedia, TierBaixa}

// Rank orders tiers; a higher rank is more relevant.
func (t Tier) Rank() int {
	switch t {
	case TierAlta:
		return 2
	case TierMedia:
		return 1
	default:
		return 0
	}
}

// ParseTier accepts tier names with or without accents.
func ParseTier(value string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "alta":
		return TierAlta, true
	case "média", "media":
		return TierMedia, true
	case "baixa":
		return TierBaixa, true
	}
	return "", false
}

// NewsRecord is a news item as produced by the collector.
type NewsRecord struct {
	ID               string           `json:"id" validate:"required"`
	Source           Source           `json:"source" validate:"required,news_source"`
	Title            string           `json:"title"`
	Content          string           `json:"content"`
	Summary          string           `json:"summary"`
	URL              string           `json:"url" validate:"required,url"`
	PublishedAt      time.Time        `json:"published_at"`
	CollectedAt      time.Time        `json:"collected_at"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	WordCount        int              `json:"word_count"`
}

// TermMatch explains one dictionary term that fired while scoring.
type TermMatch struct {
	Keyword      string  `json:"keyword"`
	Axis         string  `json:"axis"`
	Count        int     `json:"count"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Risk         float64 `json:"risk"`
}

// ScoredNewsRecord is a NewsRecord annotated by the relevance classifier.
type ScoredNewsRecord struct {
	Record          NewsRecord  `json:"record"`
	Score           float64     `json:"relevance_score"`
	Tier            Tier        `json:"relevance_tier"`
	MatchedKeywords []string    `json:"matched_keywords"`
	RiskScore       float64     `json:"risk_score"`
	MainAxis        string      `json:"main_axis"`
	Terms           []TermMatch `json:"term_details"`
	RulesetVersion  string      `json:"ruleset_version"`
}

var recordNamespace = uuid.MustParse("5f1c7a8e-3b7d-4f5e-9a51-2f0d8f3c6b10")

// RecordID derives a stable identifier from the source and canonical URL.
func RecordID(source Source, url string) string {
	return uuid.NewSHA1(recordNamespace, []byte(string(source)+"|"+strings.TrimSpace(url))).String()
}
