package relevance

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration is returned when a ruleset cannot build a classifier.
var ErrInvalidConfiguration = errors.New("invalid relevance configuration")

const (
	KindWord   = "word"
	KindPhrase = "phrase"

	defaultAxis = "Geral"
)

// Thresholds maps scores to tiers: score >= Alta is Alta, score >= Media is Média.
type Thresholds struct {
	Alta  float64 `yaml:"alta" json:"alta"`
	Media float64 `yaml:"media" json:"media"`
}

// Term is a dictionary entry with optional thematic axis and risk weight.
type Term struct {
	Keyword    string  `yaml:"keyword" json:"keyword"`
	Weight     float64 `yaml:"weight" json:"weight"`
	Axis       string  `yaml:"axis" json:"axis"`
	RiskWeight float64 `yaml:"risk_weight" json:"risk_weight"`
	Kind       string  `yaml:"kind" json:"kind"`
}

// Ruleset is the externally supplied scoring configuration.
type Ruleset struct {
	Version                  string             `yaml:"version" json:"version"`
	Keywords                 map[string]float64 `yaml:"keywords" json:"keywords"`
	Terms                    []Term             `yaml:"terms" json:"terms"`
	DictionaryPath           string             `yaml:"dictionary_path" json:"dictionary_path"`
	SourceMultipliers        map[string]float64 `yaml:"source_multipliers" json:"source_multipliers"`
	DecayHalfLifeDays        float64            `yaml:"decay_half_life_days" json:"decay_half_life_days"`
	TierThresholds           Thresholds         `yaml:"tier_thresholds" json:"tier_thresholds"`
	MaxOccurrencesPerKeyword int                `yaml:"max_occurrences_per_keyword" json:"max_occurrences_per_keyword"`
}

// DefaultRuleset returns a small FACIAP-oriented dictionary used when no file is configured.
func DefaultRuleset() Ruleset {
	return Ruleset{
		Version: "default-v1",
		Keywords: map[string]float64{
			"reforma tributária": 30,
			"imposto":            20,
			"simples nacional":   25,
			"microempreendedor":  15,
			"pequenas empresas":  15,
			"crédito":            10,
			"comércio":           10,
			"licitação":          8,
		},
		SourceMultipliers: map[string]float64{
			"Câmara":      1.2,
			"Senado":      1.0,
			"Agência Gov": 0.8,
		},
		DecayHalfLifeDays:        14,
		TierThresholds:           Thresholds{Alta: 70, Media: 40},
		MaxOccurrencesPerKeyword: 5,
	}
}

// LoadRuleset reads a YAML ruleset; a .csv path is treated as a bare dictionary.
// A dictionary_path inside the YAML is resolved relative to the YAML file.
func LoadRuleset(path string) (Ruleset, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		terms, err := LoadDictionary(path)
		if err != nil {
			return Ruleset{}, err
		}
		rs := DefaultRuleset()
		rs.Version = "dictionary:" + filepath.Base(path)
		rs.Keywords = nil
		rs.Terms = terms
		return rs, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, fmt.Errorf("read ruleset %s: %w", path, err)
	}

	var rs Ruleset
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return Ruleset{}, fmt.Errorf("parse ruleset %s: %w", path, err)
	}

	if rs.DictionaryPath != "" {
		dictPath := rs.DictionaryPath
		if !filepath.IsAbs(dictPath) {
			dictPath = filepath.Join(filepath.Dir(path), dictPath)
		}
		terms, err := LoadDictionary(dictPath)
		if err != nil {
			return Ruleset{}, err
		}
		rs.Terms = append(rs.Terms, terms...)
	}

	if rs.Version == "" {
		rs.Version = filepath.Base(path)
	}
	return rs, nil
}

// Validate checks thresholds, weights and multipliers before any record is scored.
func (r Ruleset) Validate() error {
	th := r.TierThresholds
	if !finite(th.Alta) || !finite(th.Media) {
		return fmt.Errorf("%w: tier thresholds must be finite", ErrInvalidConfiguration)
	}
	if th.Alta <= th.Media {
		return fmt.Errorf("%w: alta threshold %.2f must be greater than media threshold %.2f",
			ErrInvalidConfiguration, th.Alta, th.Media)
	}
	if !finite(r.DecayHalfLifeDays) || r.DecayHalfLifeDays < 0 {
		return fmt.Errorf("%w: decay_half_life_days must be a finite non-negative number", ErrInvalidConfiguration)
	}
	if r.MaxOccurrencesPerKeyword < 0 {
		return fmt.Errorf("%w: max_occurrences_per_keyword must not be negative", ErrInvalidConfiguration)
	}
	for source, m := range r.SourceMultipliers {
		if !finite(m) {
			return fmt.Errorf("%w: multiplier for source %q is not finite", ErrInvalidConfiguration, source)
		}
	}

	seen := make(map[string]string)
	for _, term := range r.terms() {
		folded := Fold(term.Keyword)
		if folded == "" {
			return fmt.Errorf("%w: empty keyword", ErrInvalidConfiguration)
		}
		if !finite(term.Weight) || !finite(term.RiskWeight) {
			return fmt.Errorf("%w: weight for keyword %q is not finite", ErrInvalidConfiguration, term.Keyword)
		}
		switch term.Kind {
		case "", KindWord, KindPhrase:
		default:
			return fmt.Errorf("%w: keyword %q has unknown kind %q", ErrInvalidConfiguration, term.Keyword, term.Kind)
		}
		if prev, ok := seen[folded]; ok {
			return fmt.Errorf("%w: keywords %q and %q are the same after normalization",
				ErrInvalidConfiguration, prev, term.Keyword)
		}
		seen[folded] = term.Keyword
	}
	return nil
}

// terms merges the plain keyword map with the detailed dictionary entries.
func (r Ruleset) terms() []Term {
	out := make([]Term, 0, len(r.Keywords)+len(r.Terms))
	for keyword, weight := range r.Keywords {
		out = append(out, Term{Keyword: keyword, Weight: weight})
	}
	return append(out, r.Terms...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
