package parser

import (
	"log/slog"
	"regexp"

	"LegislativeClipping/internal/domain"
)

// NewCamaraScanner reads https://www.camara.leg.br/noticias/ultimas?pagina=N.
func NewCamaraScanner(fetcher PageFetcher, logger *slog.Logger) *ListingScanner {
	return &ListingScanner{
		fetcher: fetcher,
		logger:  logger,
		profile: profile{
			name:     "camara",
			source:   domain.SourceCamara,
			baseURL:  "https://www.camara.leg.br",
			newsURL:  "https://www.camara.leg.br/noticias/ultimas",
			link:     regexp.MustCompile(`/noticias/\d{7}-`),
			minTitle: 20,
			perPage:  20,
			pageURL:  queryPage("pagina"),
		},
	}
}

// NewSenadoScanner reads https://www12.senado.leg.br/noticias/ultimas/N.
func NewSenadoScanner(fetcher PageFetcher, logger *slog.Logger) *ListingScanner {
	return &ListingScanner{
		fetcher: fetcher,
		logger:  logger,
		profile: profile{
			name:     "senado",
			source:   domain.SourceSenado,
			baseURL:  "https://www12.senado.leg.br",
			newsURL:  "https://www12.senado.leg.br/noticias/ultimas",
			link:     regexp.MustCompile(`/noticias/materias/\d{4}/\d{2}/\d{2}/`),
			pathDate: regexp.MustCompile(`/materias/(\d{4})/(\d{2})/(\d{2})/`),
			minTitle: 15,
			perPage:  15,
			pageURL:  pathPage,
		},
	}
}

// NewAgenciaGovScanner reads https://agenciagov.ebc.com.br/noticias?page=N.
// Publication month comes from the /noticias/YYYYMM/ path segment.
func NewAgenciaGovScanner(fetcher PageFetcher, logger *slog.Logger) *ListingScanner {
	return &ListingScanner{
		fetcher: fetcher,
		logger:  logger,
		profile: profile{
			name:     "agencia_gov",
			source:   domain.SourceAgenciaGov,
			baseURL:  "https://agenciagov.ebc.com.br",
			newsURL:  "https://agenciagov.ebc.com.br/noticias",
			link:     regexp.MustCompile(`/noticias/\d{6}/`),
			pathDate: regexp.MustCompile(`/noticias/(\d{4})(\d{2})/`),
			minTitle: 20,
			perPage:  15,
			skipTitles: []string{
				"notícias gov", "canal gov", "rádio gov", "acessar", "distribuição", "conteúdo",
			},
			summary: true,
			pageURL: queryPage("page"),
		},
	}
}
