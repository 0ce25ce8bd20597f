package parser

import (
	"regexp"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{"date and time", "Publicado em 07/03/2025 18:42", time.Date(2025, 3, 7, 18, 42, 0, 0, brasilia), true},
		{"hour marker", "07/03/2025 09h15 - Atualizado", time.Date(2025, 3, 7, 9, 15, 0, 0, brasilia), true},
		{"date only", "em 28/02/2025", time.Date(2025, 2, 28, 0, 0, 0, 0, brasilia), true},
		{"invalid day", "31/02/2025", time.Time{}, false},
		{"no date", "Comissão aprova projeto", time.Time{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseDate(tc.text)
			if ok != tc.ok {
				t.Fatalf("parseDate(%q) ok=%v, want %v", tc.text, ok, tc.ok)
			}
			if ok && !got.Equal(tc.want) {
				t.Fatalf("parseDate(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestDateFromPath(t *testing.T) {
	t.Parallel()

	daily := regexp.MustCompile(`/materias/(\d{4})/(\d{2})/(\d{2})/`)
	got, ok := dateFromPath(daily, "/noticias/materias/2025/03/07/texto")
	if !ok || !got.Equal(time.Date(2025, 3, 7, 0, 0, 0, 0, brasilia)) {
		t.Fatalf("unexpected daily path date %v ok=%v", got, ok)
	}

	monthly := regexp.MustCompile(`/noticias/(\d{4})(\d{2})/`)
	got, ok = dateFromPath(monthly, "/noticias/202513/texto")
	if ok {
		t.Fatalf("expected month 13 to be rejected, got %v", got)
	}

	if _, ok := dateFromPath(nil, "/noticias/x"); ok {
		t.Fatalf("nil expression must not match")
	}
}
