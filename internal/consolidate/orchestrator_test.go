package consolidate

import (
	"context"
	"errors"
	"testing"
	"time"

	"licitahub/internal/domain"
	"licitahub/internal/resilience"
	"licitahub/internal/sources"
)

type fakeFetcher struct {
	name  string
	items []domain.UnifiedListing
	err   error
	delay time.Duration
}

func (f *fakeFetcher) Name() string {
	return f.name
}

func (f *fakeFetcher) Fetch(ctx context.Context, query domain.SearchQuery) ([]domain.UnifiedListing, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &resilience.Error{Kind: resilience.KindTimeout, Source: f.name, Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func manager(fetchers ...*fakeFetcher) *sources.Manager {
	m := sources.NewManager()
	for _, f := range fetchers {
		m.Register(f.name, f, resilience.NewBreaker(0, 0))
	}
	return m
}

func fixtureListing(source domain.Source, sourceID, title string) domain.UnifiedListing {
	value := 42000.0
	return domain.UnifiedListing{
		ID:                domain.NewListingID(),
		Source:            source,
		SourceID:          sourceID,
		Title:             title,
		EstimatedValue:    &value,
		Modality:          domain.ModalityPregaoEletronico,
		Status:            domain.StatusOpen,
		Region:            "SP",
		OrganizationName:  "Prefeitura de Sorocaba",
		OrganizationTaxID: "46634101000186",
		PublicationDate:   time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC),
		FetchedAt:         time.Now().UTC(),
	}
}

func query() domain.SearchQuery {
	return domain.SearchQuery{
		DateFrom: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetchAllIsolatesFailingSource(t *testing.T) {
	t.Parallel()

	a := &fakeFetcher{name: "pncp", items: []domain.UnifiedListing{fixtureListing(domain.SourcePNCP, "p-1", "Aquisição de ambulâncias")}}
	b := &fakeFetcher{name: "comprasnet", err: &resilience.Error{Kind: resilience.KindTransient, Source: "comprasnet", Err: errors.New("connection refused")}}
	c := &fakeFetcher{name: "bll", items: []domain.UnifiedListing{fixtureListing(domain.SourceBLL, "b-1", "Serviços de limpeza urbana")}}

	o := New(Deps{Manager: manager(a, b, c)})
	result := o.FetchAll(context.Background(), query())

	if result.SourcesQueried != 3 || result.SourcesSucceeded != 2 || result.SourcesFailed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Source != "comprasnet" {
		t.Fatalf("expected a single comprasnet error, got %+v", result.Errors)
	}
	if result.Errors[0].Kind != "transient" {
		t.Fatalf("expected transient kind, got %s", result.Errors[0].Kind)
	}
	if result.Total != 2 {
		t.Fatalf("expected listings from the two healthy sources, got %d", result.Total)
	}
}

func TestFetchAllEmptySourceSet(t *testing.T) {
	t.Parallel()

	o := New(Deps{Manager: sources.NewManager()})
	result := o.FetchAll(context.Background(), query())

	if result.SourcesQueried != 0 || result.Total != 0 || len(result.Errors) != 0 {
		t.Fatalf("empty source set should yield a zeroed result, got %+v", result)
	}
}

func TestFetchAllSourceFilter(t *testing.T) {
	t.Parallel()

	a := &fakeFetcher{name: "pncp", items: []domain.UnifiedListing{fixtureListing(domain.SourcePNCP, "p-1", "Reforma de escola estadual")}}
	b := &fakeFetcher{name: "bll", items: []domain.UnifiedListing{fixtureListing(domain.SourceBLL, "b-1", "Concessão de transporte coletivo")}}

	o := New(Deps{Manager: manager(a, b)})

	q := query()
	q.Sources = []string{"bll", "inexistente"}
	result := o.FetchAll(context.Background(), q)

	if result.SourcesQueried != 1 {
		t.Fatalf("unknown names must be skipped silently, got %d queried", result.SourcesQueried)
	}
	if result.Total != 1 || result.Items[0].Source != domain.SourceBLL {
		t.Fatalf("expected only bll listings, got %+v", result.Items)
	}
}

func TestFetchAllGlobalTimeoutKeepsFastResults(t *testing.T) {
	t.Parallel()

	fast := &fakeFetcher{name: "pncp", items: []domain.UnifiedListing{fixtureListing(domain.SourcePNCP, "p-1", "Aquisição de medicamentos")}}
	slow := &fakeFetcher{name: "licitanet", delay: 10 * time.Second}

	o := New(Deps{Manager: manager(fast, slow), GlobalTimeout: 100 * time.Millisecond})

	start := time.Now()
	result := o.FetchAll(context.Background(), query())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("run should finish near the global timeout, took %v", elapsed)
	}
	if result.SourcesSucceeded != 1 || result.SourcesFailed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Total != 1 {
		t.Fatal("fast source results must survive the global timeout")
	}
	if len(result.Errors) != 1 || result.Errors[0].Source != "licitanet" || result.Errors[0].Kind != "timeout" {
		t.Fatalf("slow source should surface as a timeout error, got %+v", result.Errors)
	}
}

func TestFetchAllAllSourcesFailed(t *testing.T) {
	t.Parallel()

	a := &fakeFetcher{name: "pncp", err: errors.New("boom")}
	b := &fakeFetcher{name: "bll", err: errors.New("boom")}

	o := New(Deps{Manager: manager(a, b)})
	result := o.FetchAll(context.Background(), query())

	if result.Total != 0 || result.SourcesFailed != 2 || len(result.Errors) != 2 {
		t.Fatalf("all-sources-failed should still return a structured result, got %+v", result)
	}
}

func TestFetchAllDeduplicatesAcrossSources(t *testing.T) {
	t.Parallel()

	official := fixtureListing(domain.SourcePNCP, "p-9", "Construção de creche municipal")
	mirrored := fixtureListing(domain.SourceBLL, "b-9", "Construção de creche municipal")

	a := &fakeFetcher{name: "pncp", items: []domain.UnifiedListing{official}}
	b := &fakeFetcher{name: "bll", items: []domain.UnifiedListing{mirrored}}

	o := New(Deps{Manager: manager(a, b)})
	result := o.FetchAll(context.Background(), query())

	if result.Total != 1 {
		t.Fatalf("cross-source duplicate should collapse, got %d items", result.Total)
	}
	if result.Items[0].Source != domain.SourcePNCP {
		t.Fatalf("official source should win attribution, got %s", result.Items[0].Source)
	}
	if result.DedupStats.DuplicatesFound != 1 {
		t.Fatalf("unexpected dedup stats: %+v", result.DedupStats)
	}
}
