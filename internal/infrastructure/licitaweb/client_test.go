package licitaweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"licitahub/internal/domain"
	"licitahub/internal/resilience"
)

const cardHTML = `
<div class="resultados">
  <div class="licitacao-card" data-id="BLL-2026-0042">
    <a class="licitacao-link" href="/licitacao/42">ver edital</a>
    <div class="licitacao-objeto">Aquisição de uniformes escolares</div>
    <div class="licitacao-descricao">Uniformes para a rede municipal de ensino</div>
    <div class="licitacao-modalidade">Pregão Eletrônico</div>
    <div class="licitacao-situacao">Recebendo Propostas</div>
    <div class="licitacao-orgao">Prefeitura de Maringá</div>
    <div class="licitacao-cnpj">76.282.656/0001-06</div>
    <div class="licitacao-uf">PR</div>
    <div class="licitacao-municipio">Maringá</div>
    <div class="licitacao-valor">R$ 1.234.567,89</div>
    <div class="licitacao-publicacao">05/02/2026</div>
    <div class="licitacao-abertura">12/02/2026 09:00</div>
    <div class="licitacao-encerramento">20/02/2026 18:00</div>
  </div>
  <div class="licitacao-card" data-id="BLL-2026-0007">
    <div class="licitacao-objeto">Locação de máquinas pesadas</div>
    <div class="licitacao-modalidade">Concorrência</div>
    <div class="licitacao-situacao">Encerrada</div>
    <div class="licitacao-orgao">Prefeitura de Cascavel</div>
    <div class="licitacao-uf">PR</div>
    <div class="licitacao-publicacao">10/01/2026</div>
  </div>
</div>
<a class="pagina-proxima" href="?pagina=2">próxima</a>`

func testQuery() domain.SearchQuery {
	return domain.SearchQuery{
		DateFrom: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetchPageParsesCards(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("dataInicio") != "01/02/2026" || q.Get("dataFim") != "28/02/2026" {
			t.Errorf("unexpected date params: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(cardHTML))
	}))
	defer server.Close()

	c := New(domain.SourceBLL, server.URL, server.Client())

	result, err := c.FetchPage(context.Background(), testQuery(), 1)
	if err != nil {
		t.Fatalf("FetchPage error: %v", err)
	}

	// The January card falls outside the query window.
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 listing inside the window, got %d", len(result.Items))
	}
	if !result.HasMore {
		t.Fatal("next-page link should set HasMore")
	}

	l := result.Items[0]
	if l.Source != domain.SourceBLL || l.SourceID != "BLL-2026-0042" {
		t.Fatalf("unexpected identity: %s/%s", l.Source, l.SourceID)
	}
	if l.EstimatedValue == nil || *l.EstimatedValue != 1234567.89 {
		t.Fatalf("unexpected value: %v", l.EstimatedValue)
	}
	if l.Modality != domain.ModalityPregaoEletronico {
		t.Fatalf("unexpected modality: %s", l.Modality)
	}
	if l.Status != domain.StatusOpen {
		t.Fatalf("unexpected status: %s", l.Status)
	}
	if l.OrganizationTaxID != "76282656000106" {
		t.Fatalf("unexpected tax id: %s", l.OrganizationTaxID)
	}
	if l.Region != "PR" || l.Locality != "Maringá" {
		t.Fatalf("unexpected location: %s/%s", l.Region, l.Locality)
	}
	if !strings.HasPrefix(l.SourceURL, server.URL) {
		t.Fatalf("relative link should resolve against the base url, got %s", l.SourceURL)
	}
	if l.OpeningDate == nil || l.ClosingDate == nil {
		t.Fatal("opening and closing dates should parse")
	}
	if l.PublicationDate.Format("2006-01-02") != "2026-02-05" {
		t.Fatalf("unexpected publication date: %v", l.PublicationDate)
	}
}

func TestFetchPageRegionFilter(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cardHTML))
	}))
	defer server.Close()

	c := New(domain.SourceBLL, server.URL, server.Client())

	q := testQuery()
	q.Regions = []string{"SP"}
	result, err := c.FetchPage(context.Background(), q, 1)
	if err != nil {
		t.Fatalf("FetchPage error: %v", err)
	}
	if len(result.Items) != 0 {
		t.Fatalf("PR cards should not pass an SP filter, got %d", len(result.Items))
	}
}

func TestFetchPageUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New(domain.SourceBLL, server.URL, server.Client())

	_, err := c.FetchPage(context.Background(), testQuery(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if resilience.KindOf(err) != resilience.KindTransient {
		t.Fatalf("429 should classify as transient, got %s", resilience.KindOf(err))
	}
}

func TestParseMoney(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    float64
		wantNil bool
	}{
		{"R$ 1.234.567,89", 1234567.89, false},
		{"R$ 150,00", 150, false},
		{"1500,50", 1500.50, false},
		{"", 0, true},
		{"a combinar", 0, true},
	}

	for _, tc := range cases {
		got := parseMoney(tc.in)
		if tc.wantNil {
			if got != nil {
				t.Fatalf("parseMoney(%q) should be nil, got %v", tc.in, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Fatalf("parseMoney(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseCardSkipsEmptyCards(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div class="licitacao-card"></div>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	c := New(domain.SourceBLL, "https://portal.example.org", nil)
	listing := c.parseCard(doc.Find("div.licitacao-card").First(), time.Now().UTC())

	if listing.SourceID != "" || listing.Title != "" {
		t.Fatalf("empty card should produce empty identity, got %+v", listing)
	}
	if listing.EstimatedValue != nil {
		t.Fatal("missing value should stay nil")
	}
}
