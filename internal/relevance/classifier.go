package relevance

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"LegislativeClipping/internal/domain"
)

// ErrInsufficientContent is returned when a record has no scorable text.
var ErrInsufficientContent = errors.New("insufficient content to score")

const (
	MinScore = 0.0
	MaxScore = 100.0

	maxTermDetails = 10
	hoursPerDay    = 24.0
)

type matcher struct {
	term    Term
	folded  string
	pattern *regexp.Regexp
}

func (m matcher) count(text string) int {
	if m.pattern == nil {
		return strings.Count(text, m.folded)
	}
	return len(m.pattern.FindAllStringIndex(text, -1))
}

// Classifier scores NewsRecords against one immutable ruleset.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	version     string
	matchers    []matcher
	multipliers map[string]float64
	halfLife    float64
	thresholds  Thresholds
	maxOcc      int
}

// New validates the ruleset and compiles its keyword matchers.
func New(rs Ruleset) (*Classifier, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	terms := rs.terms()
	matchers := make([]matcher, 0, len(terms))
	for _, term := range terms {
		folded := Fold(term.Keyword)
		if term.Axis == "" {
			term.Axis = defaultAxis
		}

		m := matcher{term: term, folded: folded}
		isPhrase := term.Kind == KindPhrase || (term.Kind == "" && strings.Contains(folded, " "))
		if !isPhrase {
			pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(folded) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("%w: keyword %q: %v", ErrInvalidConfiguration, term.Keyword, err)
			}
			m.pattern = pattern
		}
		matchers = append(matchers, m)
	}
	sort.Slice(matchers, func(i, j int) bool { return matchers[i].folded < matchers[j].folded })

	multipliers := make(map[string]float64, len(rs.SourceMultipliers))
	for source, m := range rs.SourceMultipliers {
		multipliers[Fold(source)] = m
	}

	return &Classifier{
		version:     rs.Version,
		matchers:    matchers,
		multipliers: multipliers,
		halfLife:    rs.DecayHalfLifeDays,
		thresholds:  rs.TierThresholds,
		maxOcc:      rs.MaxOccurrencesPerKeyword,
	}, nil
}

// Version identifies the ruleset the classifier was built from.
func (c *Classifier) Version() string {
	return c.version
}

// Classify scores a record. now is the reference instant for recency decay;
// the classifier never reads the system clock.
func (c *Classifier) Classify(rec domain.NewsRecord, now time.Time) (domain.ScoredNewsRecord, error) {
	body := rec.Content
	if strings.TrimSpace(body) == "" {
		body = rec.Summary
	}
	if strings.TrimSpace(rec.Title) == "" && strings.TrimSpace(body) == "" {
		return domain.ScoredNewsRecord{}, fmt.Errorf("record %s: %w", rec.ID, ErrInsufficientContent)
	}

	text := Fold(rec.Title + " " + body)

	var (
		raw     float64
		risk    float64
		matches []domain.TermMatch
		axes    = map[string]float64{}
	)
	for _, m := range c.matchers {
		n := m.count(text)
		if n == 0 {
			continue
		}
		if c.maxOcc > 0 && n > c.maxOcc {
			n = c.maxOcc
		}

		contribution := m.term.Weight * float64(n)
		termRisk := m.term.RiskWeight * float64(n)
		raw += contribution
		risk += termRisk
		axes[m.term.Axis] += contribution

		matches = append(matches, domain.TermMatch{
			Keyword:      m.term.Keyword,
			Axis:         m.term.Axis,
			Count:        n,
			Weight:       m.term.Weight,
			Contribution: contribution,
			Risk:         termRisk,
		})
	}

	score := clip(raw * c.sourceMultiplier(rec.Source) * c.decay(rec.PublishedAt, now))

	keywords := make([]string, 0, len(matches))
	for _, m := range matches {
		keywords = append(keywords, m.Keyword)
	}
	sort.Strings(keywords)

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Contribution != matches[j].Contribution {
			return matches[i].Contribution > matches[j].Contribution
		}
		return matches[i].Keyword < matches[j].Keyword
	})
	if len(matches) > maxTermDetails {
		matches = matches[:maxTermDetails]
	}

	return domain.ScoredNewsRecord{
		Record:          rec,
		Score:           score,
		Tier:            c.Tier(score),
		MatchedKeywords: keywords,
		RiskScore:       round2(risk),
		MainAxis:        mainAxis(axes),
		Terms:           matches,
		RulesetVersion:  c.version,
	}, nil
}

// Tier maps a score onto the threshold table.
func (c *Classifier) Tier(score float64) domain.Tier {
	switch {
	case score >= c.thresholds.Alta:
		return domain.TierAlta
	case score >= c.thresholds.Media:
		return domain.TierMedia
	default:
		return domain.TierBaixa
	}
}

func (c *Classifier) sourceMultiplier(source domain.Source) float64 {
	if m, ok := c.multipliers[Fold(string(source))]; ok {
		return m
	}
	return 1
}

// decay halves the score every halfLife days of age; future dates are not boosted.
func (c *Classifier) decay(published, now time.Time) float64 {
	if c.halfLife <= 0 || published.IsZero() {
		return 1
	}
	age := now.Sub(published).Hours() / hoursPerDay
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, age/c.halfLife)
}

func mainAxis(axes map[string]float64) string {
	best := ""
	bestScore := math.Inf(-1)
	for axis, score := range axes {
		if score > bestScore || (score == bestScore && axis < best) {
			best, bestScore = axis, score
		}
	}
	return best
}

func clip(score float64) float64 {
	return round2(math.Max(MinScore, math.Min(MaxScore, score)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
