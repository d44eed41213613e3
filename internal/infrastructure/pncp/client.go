package pncp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"licitahub/internal/domain"
	"licitahub/internal/ports"
	"licitahub/internal/resilience"
)

const (
	defaultBaseURL  = "https://pncp.gov.br/api/consulta"
	publicationPath = "/v1/contratacoes/publicacao"
	pageSize        = 50
	dateParamLayout = "20060102"
	apiDateLayout   = "2006-01-02T15:04:05"
)

// Client fetches published contracting notices from the official PNCP
// consultation API and normalizes them into unified listings.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.SourceClient = (*Client)(nil)

// New builds a client; empty baseURL falls back to the public endpoint.
func New(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{baseURL: baseURL, http: client}
}

// Name identifies the source inside the manager.
func (c *Client) Name() string {
	return string(domain.SourcePNCP)
}

// publicationResponse mirrors the consultation API envelope.
type publicationResponse struct {
	Data             []publicationItem `json:"data"`
	TotalRegistros   int               `json:"totalRegistros"`
	TotalPaginas     int               `json:"totalPaginas"`
	NumeroPagina     int               `json:"numeroPagina"`
	PaginasRestantes int               `json:"paginasRestantes"`
	Empty            bool              `json:"empty"`
}

type publicationItem struct {
	NumeroControlePNCP       string   `json:"numeroControlePNCP"`
	ObjetoCompra             string   `json:"objetoCompra"`
	InformacaoComplementar   string   `json:"informacaoComplementar"`
	ValorTotalEstimado       *float64 `json:"valorTotalEstimado"`
	ModalidadeNome           string   `json:"modalidadeNome"`
	SituacaoCompraNome       string   `json:"situacaoCompraNome"`
	DataPublicacaoPNCP       string   `json:"dataPublicacaoPncp"`
	DataAberturaProposta     string   `json:"dataAberturaProposta"`
	DataEncerramentoProposta string   `json:"dataEncerramentoProposta"`
	LinkSistemaOrigem        string   `json:"linkSistemaOrigem"`
	OrgaoEntidade            struct {
		RazaoSocial string `json:"razaoSocial"`
		CNPJ        string `json:"cnpj"`
	} `json:"orgaoEntidade"`
	UnidadeOrgao struct {
		UFSigla       string `json:"ufSigla"`
		MunicipioNome string `json:"municipioNome"`
	} `json:"unidadeOrgao"`
}

// FetchPage requests one page of publications for the query window and
// normalizes every record whose state passes the region filter.
func (c *Client) FetchPage(ctx context.Context, query domain.SearchQuery, page int) (domain.PageResult, error) {
	endpoint, err := c.pageURL(query, page)
	if err != nil {
		return domain.PageResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "licitahub/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("request publications: %w", err)
	}
	defer resp.Body.Close()

	// 204 means the window has no records at all.
	if resp.StatusCode == http.StatusNoContent {
		return domain.PageResult{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PageResult{}, &resilience.HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var payload publicationResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.PageResult{}, &resilience.Error{
			Kind:   resilience.KindNonRetryable,
			Source: c.Name(),
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}

	fetchedAt := time.Now().UTC()
	items := make([]domain.UnifiedListing, 0, len(payload.Data))
	for _, item := range payload.Data {
		if !query.MatchesRegion(item.UnidadeOrgao.UFSigla) {
			continue
		}
		items = append(items, c.normalize(item, fetchedAt))
	}

	return domain.PageResult{
		Items:   items,
		HasMore: payload.PaginasRestantes > 0,
	}, nil
}

func (c *Client) pageURL(query domain.SearchQuery, page int) (string, error) {
	parsed, err := url.Parse(c.baseURL + publicationPath)
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", c.baseURL, err)
	}

	params := parsed.Query()
	params.Set("dataInicial", query.DateFrom.Format(dateParamLayout))
	params.Set("dataFinal", query.DateTo.Format(dateParamLayout))
	params.Set("pagina", strconv.Itoa(page))
	params.Set("tamanhoPagina", strconv.Itoa(pageSize))
	if len(query.Regions) == 1 {
		params.Set("uf", query.Regions[0])
	}
	parsed.RawQuery = params.Encode()
	return parsed.String(), nil
}

func (c *Client) normalize(item publicationItem, fetchedAt time.Time) domain.UnifiedListing {
	description := item.ObjetoCompra
	if item.InformacaoComplementar != "" {
		description = item.InformacaoComplementar
	}

	raw := map[string]any{
		"numeroControlePNCP": item.NumeroControlePNCP,
		"modalidadeNome":     item.ModalidadeNome,
		"situacaoCompraNome": item.SituacaoCompraNome,
		"linkSistemaOrigem":  item.LinkSistemaOrigem,
	}

	return domain.UnifiedListing{
		ID:                domain.NewListingID(),
		Source:            domain.SourcePNCP,
		SourceID:          item.NumeroControlePNCP,
		SourceURL:         item.LinkSistemaOrigem,
		Title:             item.ObjetoCompra,
		Description:       description,
		EstimatedValue:    item.ValorTotalEstimado,
		Modality:          domain.NormalizeModality(item.ModalidadeNome),
		ModalityOriginal:  item.ModalidadeNome,
		Status:            domain.NormalizeStatus(item.SituacaoCompraNome),
		Region:            item.UnidadeOrgao.UFSigla,
		Locality:          item.UnidadeOrgao.MunicipioNome,
		OrganizationName:  item.OrgaoEntidade.RazaoSocial,
		OrganizationTaxID: domain.NormalizeTaxID(item.OrgaoEntidade.CNPJ),
		PublicationDate:   parseAPIDate(item.DataPublicacaoPNCP),
		OpeningDate:       parseOptionalDate(item.DataAberturaProposta),
		ClosingDate:       parseOptionalDate(item.DataEncerramentoProposta),
		FetchedAt:         fetchedAt,
		RawPayload:        raw,
	}
}

func parseAPIDate(raw string) time.Time {
	if t := parseOptionalDate(raw); t != nil {
		return *t
	}
	return time.Time{}
}

func parseOptionalDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{apiDateLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
