package relevance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Dictionary CSV columns, semicolon separated, header required.
const (
	colKeyword = "palavra_chave"
	colAxis    = "eixo_temat"
	colWeight  = "peso_interesse"
	colRisk    = "peso_risco"
	colKind    = "tipo"
)

// LoadDictionary reads a FACIAP dictionary CSV file.
func LoadDictionary(path string) ([]Term, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary %s: %w", path, err)
	}
	defer f.Close()

	terms, err := ParseDictionary(f)
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", path, err)
	}
	return terms, nil
}

// ParseDictionary parses the semicolon-separated dictionary. Missing weights
// default to 1, a missing axis to "Geral"; tipo "expressão" marks phrases.
func ParseDictionary(r io.Reader) ([]Term, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty dictionary")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := map[string]int{}
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	if _, ok := index[colKeyword]; !ok {
		return nil, fmt.Errorf("column %s not found", colKeyword)
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var terms []Term
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		keyword := field(row, colKeyword)
		if keyword == "" {
			continue
		}

		weight, err := parseWeight(field(row, colWeight))
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colWeight, err)
		}
		risk, err := parseWeight(field(row, colRisk))
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colRisk, err)
		}

		axis := field(row, colAxis)
		if axis == "" {
			axis = defaultAxis
		}

		kind := KindWord
		if k := Fold(field(row, colKind)); k == "expressao" || k == KindPhrase {
			kind = KindPhrase
		}

		terms = append(terms, Term{
			Keyword:    keyword,
			Weight:     weight,
			Axis:       axis,
			RiskWeight: risk,
			Kind:       kind,
		})
	}

	return terms, nil
}

func parseWeight(value string) (float64, error) {
	if value == "" {
		return 1, nil
	}
	return strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
}
