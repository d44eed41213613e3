package clients

import (
	"fmt"
	"log/slog"

	"licitahub/internal/config"
	"licitahub/internal/domain"
	"licitahub/internal/infrastructure/licitaweb"
	"licitahub/internal/infrastructure/pncp"
	"licitahub/internal/ports"
	"licitahub/internal/resilience"
	"licitahub/internal/sources"
)

// Build constructs the configured source clients, decorates each with its
// own breaker, retry policy and rate ceiling, and registers them into the
// manager. Disabled descriptors are registered but left ineligible so they
// still show up in status reports.
func Build(cfgs []config.SourceConfig, manager *sources.Manager, logger *slog.Logger) error {
	for _, sc := range cfgs {
		client, err := newClient(sc)
		if err != nil {
			return fmt.Errorf("source %s: %w", sc.Name, err)
		}

		breaker := resilience.NewBreaker(sc.FailureThreshold, sc.Cooldown())

		var componentLogger *slog.Logger
		if logger != nil {
			componentLogger = logger.With("component", "source."+sc.Name)
		}

		wrapped := resilience.Wrap(client, resilience.Options{
			Breaker:           breaker,
			MaxRetries:        sc.Retries(),
			BaseDelay:         sc.BackoffBase(),
			Timeout:           sc.Timeout(),
			RequestsPerSecond: sc.RequestsPerSecond,
			Logger:            componentLogger,
		})

		manager.Register(sc.Name, wrapped, breaker)
		if !sc.IsEnabled() {
			manager.Disable(sc.Name)
		}
	}

	return nil
}

func newClient(sc config.SourceConfig) (ports.SourceClient, error) {
	switch sc.Driver {
	case "pncp":
		return pncp.New(sc.BaseURL, nil), nil
	case "portal":
		if sc.BaseURL == "" {
			return nil, fmt.Errorf("portal driver requires a base url")
		}
		return licitaweb.New(domain.Source(sc.Name), sc.BaseURL, nil), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", sc.Driver)
	}
}
