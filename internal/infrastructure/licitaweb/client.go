package licitaweb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"licitahub/internal/domain"
	"licitahub/internal/ports"
	"licitahub/internal/resilience"
)

const (
	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"
)

// Client scrapes listing cards from an HTML procurement portal. Several
// third-party aggregators share this page structure; the tag decides which
// source the records are attributed to.
type Client struct {
	source  domain.Source
	baseURL string
	http    *http.Client
}

var _ ports.SourceClient = (*Client)(nil)

// New builds a scraping client for one portal.
func New(source domain.Source, baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{source: source, baseURL: baseURL, http: client}
}

// Name identifies the source inside the manager.
func (c *Client) Name() string {
	return string(c.source)
}

// FetchPage loads one result page and extracts every listing card passing
// the query's filters. HasMore follows the portal's next-page link.
func (c *Client) FetchPage(ctx context.Context, query domain.SearchQuery, page int) (domain.PageResult, error) {
	pageURL, err := c.pageURL(query, page)
	if err != nil {
		return domain.PageResult{}, err
	}

	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.PageResult{}, err
	}

	fetchedAt := time.Now().UTC()
	var items []domain.UnifiedListing

	doc.Find("div.licitacao-card").Each(func(i int, card *goquery.Selection) {
		listing := c.parseCard(card, fetchedAt)
		if listing.SourceID == "" || listing.Title == "" {
			return
		}
		if !query.MatchesRegion(listing.Region) {
			return
		}
		if !withinWindow(listing.PublicationDate, query) {
			return
		}
		items = append(items, listing)
	})

	hasMore := doc.Find("a.pagina-proxima").Length() > 0
	return domain.PageResult{Items: items, HasMore: hasMore}, nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "licitahub/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &resilience.Error{
			Kind:   resilience.KindNonRetryable,
			Source: c.Name(),
			Err:    fmt.Errorf("parse document: %w", err),
		}
	}

	return doc, nil
}

func (c *Client) parseCard(card *goquery.Selection, fetchedAt time.Time) domain.UnifiedListing {
	sourceID, _ := card.Attr("data-id")

	title := text(card, ".licitacao-objeto")
	modalityRaw := text(card, ".licitacao-modalidade")
	statusRaw := text(card, ".licitacao-situacao")
	organization := text(card, ".licitacao-orgao")
	taxID := text(card, ".licitacao-cnpj")
	region := strings.ToUpper(text(card, ".licitacao-uf"))
	locality := text(card, ".licitacao-municipio")

	link := ""
	if href, ok := card.Find("a.licitacao-link").First().Attr("href"); ok {
		link = c.absoluteURL(href)
	}

	return domain.UnifiedListing{
		ID:                domain.NewListingID(),
		Source:            c.source,
		SourceID:          sourceID,
		SourceURL:         link,
		Title:             title,
		Description:       text(card, ".licitacao-descricao"),
		EstimatedValue:    parseMoney(text(card, ".licitacao-valor")),
		Modality:          domain.NormalizeModality(modalityRaw),
		ModalityOriginal:  modalityRaw,
		Status:            domain.NormalizeStatus(statusRaw),
		Region:            region,
		Locality:          locality,
		OrganizationName:  organization,
		OrganizationTaxID: domain.NormalizeTaxID(taxID),
		PublicationDate:   parseDate(text(card, ".licitacao-publicacao")),
		OpeningDate:       parseOptionalDate(text(card, ".licitacao-abertura")),
		ClosingDate:       parseOptionalDate(text(card, ".licitacao-encerramento")),
		FetchedAt:         fetchedAt,
		RawPayload: map[string]any{
			"modalidade": modalityRaw,
			"situacao":   statusRaw,
			"html_id":    sourceID,
		},
	}
}

func (c *Client) pageURL(query domain.SearchQuery, page int) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", c.baseURL, err)
	}

	params := parsed.Query()
	params.Set("dataInicio", query.DateFrom.Format(dateLayout))
	params.Set("dataFim", query.DateTo.Format(dateLayout))
	params.Set("pagina", strconv.Itoa(page))
	parsed.RawQuery = params.Encode()
	return parsed.String(), nil
}

func (c *Client) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func text(card *goquery.Selection, selector string) string {
	return strings.TrimSpace(card.Find(selector).First().Text())
}

// parseMoney reads Brazilian currency notation ("R$ 1.234.567,89").
func parseMoney(raw string) *float64 {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "R$"))
	if raw == "" {
		return nil
	}

	raw = strings.ReplaceAll(raw, ".", "")
	raw = strings.ReplaceAll(raw, ",", ".")

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

func parseDate(raw string) time.Time {
	if t := parseOptionalDate(raw); t != nil {
		return *t
	}
	return time.Time{}
}

func parseOptionalDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{dateTimeLayout, dateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func withinWindow(published time.Time, query domain.SearchQuery) bool {
	if published.IsZero() {
		return true
	}
	if !query.DateFrom.IsZero() && published.Before(query.DateFrom) {
		return false
	}
	if !query.DateTo.IsZero() && published.After(query.DateTo.Add(24*time.Hour)) {
		return false
	}
	return true
}
