package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"licitahub/internal/app"
	"licitahub/internal/config"
	"licitahub/internal/domain"
	"licitahub/internal/logging"
)

func main() {
	var (
		from    = flag.String("from", "", "start of the publication window (YYYY-MM-DD, default 7 days ago)")
		to      = flag.String("to", "", "end of the publication window (YYYY-MM-DD, default today)")
		regions = flag.String("regions", "", "comma-separated state codes, e.g. SP,RJ")
		names   = flag.String("sources", "", "comma-separated source names; empty queries every enabled source")
		watch   = flag.Bool("watch", false, "keep refreshing on the configured interval")
	)
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	query, err := buildQuery(*from, *to, *regions, *names)
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *watch {
		err := application.Watch(ctx, query, func(result domain.ConsolidatedResult) {
			printJSON(result)
		})
		if err != nil {
			logger.Error("watch stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	result := application.RunOnce(ctx, query)
	printJSON(result)
}

func buildQuery(from, to, regions, names string) (domain.SearchQuery, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)

	query := domain.SearchQuery{
		DateFrom: now.AddDate(0, 0, -7),
		DateTo:   now,
	}

	var err error
	if from != "" {
		if query.DateFrom, err = time.Parse("2006-01-02", from); err != nil {
			return domain.SearchQuery{}, err
		}
	}
	if to != "" {
		if query.DateTo, err = time.Parse("2006-01-02", to); err != nil {
			return domain.SearchQuery{}, err
		}
	}

	query.Regions = splitList(regions, strings.ToUpper)
	query.Sources = splitList(names, strings.ToLower)
	return query, nil
}

func splitList(raw string, fold func(string) string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, fold(trimmed))
		}
	}
	return out
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
