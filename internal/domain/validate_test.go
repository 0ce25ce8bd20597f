package domain

import (
	"errors"
	"testing"
	"time"
)

func validRecord() NewsRecord {
	url := "https://www.camara.leg.br/noticias/1234567-reforma"
	return NewsRecord{
		ID:          RecordID(SourceCamara, url),
		Source:      SourceCamara,
		Title:       "Reforma tributária aprovada",
		URL:         url,
		PublishedAt: time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC),
	}
}

func TestValidateRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*NewsRecord)
		ok     bool
	}{
		{name: "valid", mutate: func(*NewsRecord) {}, ok: true},
		{name: "missing id", mutate: func(r *NewsRecord) { r.ID = "" }},
		{name: "missing source", mutate: func(r *NewsRecord) { r.Source = "" }},
		{name: "unknown source", mutate: func(r *NewsRecord) { r.Source = "Diário Oficial" }},
		{name: "missing published_at", mutate: func(r *NewsRecord) { r.PublishedAt = time.Time{} }},
		{name: "bad url", mutate: func(r *NewsRecord) { r.URL = "not a url" }},
		{name: "empty title is allowed", mutate: func(r *NewsRecord) { r.Title = "" }, ok: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := validRecord()
			tt.mutate(&rec)
			err := ValidateRecord(rec)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestRecordIDStable(t *testing.T) {
	t.Parallel()

	a := RecordID(SourceSenado, "https://www12.senado.leg.br/noticias/materias/2025/03/10/x")
	b := RecordID(SourceSenado, " https://www12.senado.leg.br/noticias/materias/2025/03/10/x ")
	if a != b {
		t.Fatalf("expected stable id, got %s and %s", a, b)
	}
	if c := RecordID(SourceCamara, "https://www12.senado.leg.br/noticias/materias/2025/03/10/x"); c == a {
		t.Fatalf("expected id to depend on source")
	}
}

func TestParseSourceAndTier(t *testing.T) {
	t.Parallel()

	if s, ok := ParseSource("agencia_gov"); !ok || s != SourceAgenciaGov {
		t.Fatalf("unexpected source: %q %v", s, ok)
	}
	if s, ok := ParseSource("Câmara"); !ok || s != SourceCamara {
		t.Fatalf("unexpected source: %q %v", s, ok)
	}
	if _, ok := ParseSource("tv"); ok {
		t.Fatalf("expected unknown source")
	}
	if tier, ok := ParseTier("media"); !ok || tier != TierMedia {
		t.Fatalf("unexpected tier: %q %v", tier, ok)
	}
	if TierAlta.Rank() <= TierMedia.Rank() || TierMedia.Rank() <= TierBaixa.Rank() {
		t.Fatalf("tier ranks are not ordered")
	}
}
