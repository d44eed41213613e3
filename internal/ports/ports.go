package ports

import (
	"context"
	"time"

	"licitahub/internal/domain"
)

// SourceClient is the contract every per-source adapter implements. A page
// fetch returns normalized listings plus a continuation flag; the caller
// drains pages before handing results upstream.
type SourceClient interface {
	Name() string
	FetchPage(ctx context.Context, query domain.SearchQuery, page int) (domain.PageResult, error)
}

// ListingFetcher is the drained, resilience-wrapped view of a source the
// orchestrator consumes: one call, all pages, or a classified error.
type ListingFetcher interface {
	Name() string
	Fetch(ctx context.Context, query domain.SearchQuery) ([]domain.UnifiedListing, error)
}

// ListingRepository persists consolidated run snapshots for audit.
type ListingRepository interface {
	SaveRun(ctx context.Context, query domain.SearchQuery, result domain.ConsolidatedResult) error
}

// Scheduler controls when recurring consolidations execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
