package domain

import (
	"time"

	"github.com/google/uuid"
)

// Source tags the platform a listing was fetched from.
type Source string

const (
	SourcePNCP       Source = "pncp"
	SourceComprasNet Source = "comprasnet"
	SourceBLL        Source = "bll"
	SourceBNC        Source = "bnc"
	SourceLicitanet  Source = "licitanet"
	SourceUnknown    Source = "unknown"
)

// Modality is the normalized contracting modality.
type Modality string

const (
	ModalityPregaoEletronico   Modality = "pregao_eletronico"
	ModalityPregaoPresencial   Modality = "pregao_presencial"
	ModalityConcorrencia       Modality = "concorrencia"
	ModalityTomadaPrecos       Modality = "tomada_precos"
	ModalityConvite            Modality = "convite"
	ModalityLeilao             Modality = "leilao"
	ModalityDispensa           Modality = "dispensa"
	ModalityInexigibilidade    Modality = "inexigibilidade"
	ModalityDialogoCompetitivo Modality = "dialogo_competitivo"
	ModalityCredenciamento     Modality = "credenciamento"
	ModalityUnknown            Modality = "unknown"
)

// Status is the normalized lifecycle state of an opportunity.
type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusAwarded   Status = "awarded"
	StatusUnknown   Status = "unknown"
)

// UnifiedListing is the canonical procurement record produced by every
// source client. Source+SourceID is unique within one platform only; the
// same real-world opportunity may appear under different pairs across
// platforms, which is what Fingerprint resolves.
type UnifiedListing struct {
	ID                string         `json:"id"`
	Source            Source         `json:"source"`
	SourceID          string         `json:"sourceId"`
	SourceURL         string         `json:"sourceUrl,omitempty"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	EstimatedValue    *float64       `json:"estimatedValue,omitempty"`
	Modality          Modality       `json:"modality"`
	ModalityOriginal  string         `json:"modalityOriginal,omitempty"`
	Status            Status         `json:"status"`
	Region            string         `json:"region"`
	Locality          string         `json:"locality,omitempty"`
	OrganizationName  string         `json:"organizationName"`
	OrganizationTaxID string         `json:"organizationTaxId,omitempty"`
	PublicationDate   time.Time      `json:"publicationDate"`
	OpeningDate       *time.Time     `json:"openingDate,omitempty"`
	ClosingDate       *time.Time     `json:"closingDate,omitempty"`
	FetchedAt         time.Time      `json:"fetchedAt"`
	RawPayload        map[string]any `json:"rawPayload,omitempty"`
	Fingerprint       string         `json:"fingerprint,omitempty"`
}

// NewListingID generates the internal identifier for a freshly fetched listing.
func NewListingID() string {
	return uuid.NewString()
}

// SearchQuery is the unified filter set passed to every source.
type SearchQuery struct {
	DateFrom time.Time
	DateTo   time.Time
	Regions  []string
	Sources  []string
}

// MatchesRegion reports whether a state code passes the query's region
// filter. An empty filter matches everything.
func (q SearchQuery) MatchesRegion(uf string) bool {
	if len(q.Regions) == 0 {
		return true
	}
	for _, r := range q.Regions {
		if r == uf {
			return true
		}
	}
	return false
}

// PageResult is one page of a source client's paginated fetch.
type PageResult struct {
	Items   []UnifiedListing
	HasMore bool
}

// SourceError records one source's failure during a consolidation run.
type SourceError struct {
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	Message   string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// DedupStats summarizes one deduplication pass.
type DedupStats struct {
	TotalInput      int `json:"totalInput"`
	TotalOutput     int `json:"totalOutput"`
	DuplicatesFound int `json:"duplicatesFound"`
}

// ConsolidatedResult is the output of one orchestration run. It is always
// partial-success capable: source failures land in Errors, never abort the run.
type ConsolidatedResult struct {
	Items            []UnifiedListing `json:"items"`
	Total            int              `json:"total"`
	SourcesQueried   int              `json:"sourcesQueried"`
	SourcesSucceeded int              `json:"sourcesSucceeded"`
	SourcesFailed    int              `json:"sourcesFailed"`
	Errors           []SourceError    `json:"errors"`
	DedupStats       DedupStats       `json:"dedupStats"`
	DurationMs       float64          `json:"durationMs"`
}
