package scanner

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"LegislativeClipping/internal/domain"
)

type namedScanner struct {
	name   string
	source domain.Source
}

func (s namedScanner) Name() string          { return s.name }
func (s namedScanner) Source() domain.Source { return s.source }
func (s namedScanner) Scan(context.Context, Request) ([]domain.NewsRecord, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedScanner{name: "senado", source: domain.SourceSenado})
	reg.Register(namedScanner{name: "camara", source: domain.SourceCamara})
	reg.Register(namedScanner{name: "camara", source: domain.SourceAgenciaGov})

	if got := reg.Names(); !reflect.DeepEqual(got, []string{"camara", "senado"}) {
		t.Fatalf("unexpected names %v", got)
	}

	s, err := reg.Resolve("camara")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.Source() != domain.SourceAgenciaGov {
		t.Fatalf("later registration should replace the earlier one, got %s", s.Source())
	}

	if _, err := reg.Resolve("globo"); err == nil || !strings.Contains(err.Error(), "camara") {
		t.Fatalf("expected error listing available scanners, got %v", err)
	}
}

func TestZeroRegistryRegister(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(namedScanner{name: "senado", source: domain.SourceSenado})
	if _, err := reg.Resolve("senado"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}
