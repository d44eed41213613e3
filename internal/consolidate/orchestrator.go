package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"licitahub/internal/dedup"
	"licitahub/internal/domain"
	"licitahub/internal/ports"
	"licitahub/internal/resilience"
	"licitahub/internal/sources"
)

const defaultGlobalTimeout = 60 * time.Second

// Deps wires the collaborators into the orchestrator.
type Deps struct {
	Manager       *sources.Manager
	Engine        *dedup.Engine
	GlobalTimeout time.Duration
	Logger        *slog.Logger
}

// Orchestrator is the single public entry point of the consolidation core:
// it fans one fetch per eligible source out, fans results back in under a
// global timeout, and hands the concatenated listings to the dedup engine.
// Source failures never abort a run; the caller always receives a
// structured, partial-success-capable result.
type Orchestrator struct {
	manager       *sources.Manager
	engine        *dedup.Engine
	globalTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// New builds the orchestrator; a nil engine gets the default priority table.
func New(deps Deps) *Orchestrator {
	engine := deps.Engine
	if engine == nil {
		engine = dedup.NewEngine()
	}

	timeout := deps.GlobalTimeout
	if timeout <= 0 {
		timeout = defaultGlobalTimeout
	}

	return &Orchestrator{
		manager:       deps.Manager,
		engine:        engine,
		globalTimeout: timeout,
		logger:        deps.Logger,
		now:           time.Now,
	}
}

type outcome struct {
	name  string
	items []domain.UnifiedListing
	err   error
}

// FetchAll resolves the target sources, queries them in parallel and
// returns the deduplicated, attributed result. An empty resolved source set
// yields a zeroed result, not an error.
func (o *Orchestrator) FetchAll(ctx context.Context, query domain.SearchQuery) domain.ConsolidatedResult {
	start := time.Now()

	fetchers := o.resolve(query)
	result := domain.ConsolidatedResult{
		Items:          []domain.UnifiedListing{},
		Errors:         []domain.SourceError{},
		SourcesQueried: len(fetchers),
	}

	if len(fetchers) == 0 {
		o.debug("no eligible sources for query")
		result.DurationMs = float64(time.Since(start).Microseconds()) / 1000
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, o.globalTimeout)
	defer cancel()

	outcomes := make(chan outcome, len(fetchers))
	for _, f := range fetchers {
		go func(f ports.ListingFetcher) {
			items, err := f.Fetch(runCtx, query)
			outcomes <- outcome{name: f.Name(), items: items, err: err}
		}(f)
	}

	var collected []domain.UnifiedListing
	pending := make(map[string]bool, len(fetchers))
	for _, f := range fetchers {
		pending[f.Name()] = true
	}

collect:
	for i := 0; i < len(fetchers); i++ {
		select {
		case out := <-outcomes:
			delete(pending, out.name)
			if out.err != nil {
				result.SourcesFailed++
				result.Errors = append(result.Errors, o.sourceError(out.name, out.err))
				o.debug("source failed", "source", out.name, "error", out.err)
				continue
			}
			result.SourcesSucceeded++
			collected = append(collected, out.items...)
			o.debug("source succeeded", "source", out.name, "listings", len(out.items))
		case <-runCtx.Done():
			// Global budget exhausted: cancellation has already propagated
			// to every in-flight fetch through runCtx; convert whatever is
			// still pending and keep the results we have.
			break collect
		}
	}

	for _, f := range fetchers {
		if pending[f.Name()] {
			result.SourcesFailed++
			result.Errors = append(result.Errors, domain.SourceError{
				Source:    f.Name(),
				Kind:      resilience.KindTimeout.String(),
				Message:   fmt.Sprintf("source %s: global timeout of %s exceeded", f.Name(), o.globalTimeout),
				Timestamp: o.now().UTC(),
			})
		}
	}

	result.Items, result.DedupStats = o.engine.Deduplicate(collected)
	result.Total = len(result.Items)
	result.DurationMs = float64(time.Since(start).Microseconds()) / 1000

	o.debug("consolidation finished",
		"queried", result.SourcesQueried,
		"succeeded", result.SourcesSucceeded,
		"failed", result.SourcesFailed,
		"total", result.Total,
		"duplicates", result.DedupStats.DuplicatesFound,
		"duration_ms", result.DurationMs)

	return result
}

// resolve picks the target source set: the named subset when the query
// carries a source filter (unknown names skipped silently), every eligible
// source otherwise.
func (o *Orchestrator) resolve(query domain.SearchQuery) []ports.ListingFetcher {
	if o.manager == nil {
		return nil
	}
	if len(query.Sources) > 0 {
		return o.manager.Resolve(query.Sources)
	}
	return o.manager.EnabledSources()
}

func (o *Orchestrator) sourceError(name string, err error) domain.SourceError {
	return domain.SourceError{
		Source:    name,
		Kind:      resilience.KindOf(err).String(),
		Message:   err.Error(),
		Timestamp: o.now().UTC(),
	}
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}
