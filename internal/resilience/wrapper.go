package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"licitahub/internal/domain"
	"licitahub/internal/ports"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	defaultTimeout    = 30 * time.Second

	// maxPages bounds pagination drain against a source that never stops
	// reporting HasMore.
	maxPages = 50
)

// Options configures the resilience decoration of one source client.
type Options struct {
	Breaker    *Breaker
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
	// RequestsPerSecond caps the call rate against the source; zero means
	// no ceiling.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Wrapper decorates a SourceClient with retry, backoff, a per-source rate
// ceiling, a per-source timeout and a circuit breaker. It drains all pages
// of one fetch and records exactly one breaker outcome for the whole drain.
type Wrapper struct {
	client    ports.SourceClient
	breaker   *Breaker
	limiter   *rate.Limiter
	retries   int
	baseDelay time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

var _ ports.ListingFetcher = (*Wrapper)(nil)

// Wrap builds the decorated fetcher; a nil breaker gets defaults.
func Wrap(client ports.SourceClient, opts Options) *Wrapper {
	breaker := opts.Breaker
	if breaker == nil {
		breaker = NewBreaker(0, 0)
	}

	retries := opts.MaxRetries
	if retries < 0 {
		retries = defaultMaxRetries
	}

	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Wrapper{
		client:    client,
		breaker:   breaker,
		limiter:   limiter,
		retries:   retries,
		baseDelay: baseDelay,
		timeout:   timeout,
		logger:    opts.Logger,
	}
}

// Name identifies the wrapped source inside the manager.
func (w *Wrapper) Name() string {
	return w.client.Name()
}

// Breaker exposes the circuit for eligibility checks and status snapshots.
func (w *Wrapper) Breaker() *Breaker {
	return w.breaker
}

// Fetch drains all pages for the query under the per-source timeout. A
// rejected call (open circuit) returns immediately; any other terminal
// failure counts as one breaker failure.
func (w *Wrapper) Fetch(ctx context.Context, query domain.SearchQuery) ([]domain.UnifiedListing, error) {
	if err := w.breaker.Allow(w.Name()); err != nil {
		w.debug("call rejected by circuit")
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	items, err := w.drain(fetchCtx, query)
	if err != nil {
		w.breaker.RecordFailure()
		return nil, w.tag(err)
	}

	w.breaker.RecordSuccess()
	return items, nil
}

func (w *Wrapper) drain(ctx context.Context, query domain.SearchQuery) ([]domain.UnifiedListing, error) {
	var items []domain.UnifiedListing

	for page := 1; page <= maxPages; page++ {
		result, err := w.fetchPage(ctx, query, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		items = append(items, result.Items...)
		if !result.HasMore {
			break
		}
	}

	return items, nil
}

func (w *Wrapper) fetchPage(ctx context.Context, query domain.SearchQuery, page int) (domain.PageResult, error) {
	var lastErr error

	for attempt := 0; attempt <= w.retries; attempt++ {
		if err := w.wait(ctx); err != nil {
			return domain.PageResult{}, err
		}

		result, err := w.client.FetchPage(ctx, query, page)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == w.retries {
			break
		}
		if ctx.Err() != nil {
			return domain.PageResult{}, ctx.Err()
		}

		delay := w.backoff(attempt)
		w.debug("retrying page fetch", "page", page, "attempt", attempt+1, "delay", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			return domain.PageResult{}, err
		}
	}

	return domain.PageResult{}, lastErr
}

func (w *Wrapper) wait(ctx context.Context) error {
	if w.limiter == nil {
		return nil
	}
	return w.limiter.Wait(ctx)
}

// backoff is base * 2^attempt plus up to 50% jitter.
func (w *Wrapper) backoff(attempt int) time.Duration {
	delay := w.baseDelay << uint(attempt)
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

// tag wraps terminal errors with their classified kind and source name,
// keeping already-tagged errors as they are.
func (w *Wrapper) tag(err error) error {
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return &Error{Kind: KindOf(err), Source: w.Name(), Err: err}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Wrapper) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
