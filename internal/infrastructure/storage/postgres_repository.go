package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"licitahub/internal/domain"
	"licitahub/internal/ports"
)

// PostgresRepository keeps an audit trail of consolidation runs: one row
// per run plus an upserted snapshot of every listing the run returned. It
// sits outside the fetch path; a failed save never fails a run.
type PostgresRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

var _ ports.ListingRepository = (*PostgresRepository)(nil)

// Connect opens a pgx pool for the given DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// NewPostgresRepository wires a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveRun records the run summary and upserts its listings.
func (r *PostgresRepository) SaveRun(ctx context.Context, query domain.SearchQuery, result domain.ConsolidatedResult) error {
	if r.pool == nil {
		return nil
	}

	runID := uuid.NewString()

	sql, args, err := r.sb.Insert("consolidation_runs").
		Columns("id", "date_from", "date_to",
			"sources_queried", "sources_succeeded", "sources_failed",
			"total_listings", "duplicates_found", "duration_ms").
		Values(runID, query.DateFrom, query.DateTo,
			result.SourcesQueried, result.SourcesSucceeded, result.SourcesFailed,
			result.Total, result.DedupStats.DuplicatesFound, result.DurationMs).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, l := range result.Items {
		if err := r.upsertListing(ctx, runID, l); err != nil {
			return fmt.Errorf("listing %s/%s: %w", l.Source, l.SourceID, err)
		}
	}

	return nil
}

func (r *PostgresRepository) upsertListing(ctx context.Context, runID string, l domain.UnifiedListing) error {
	sql, args, err := r.sb.Insert("consolidated_listings").
		Columns("source", "source_id", "source_url", "title",
			"estimated_value", "modality", "status",
			"region", "locality", "organization_name", "organization_tax_id",
			"publication_date", "opening_date", "closing_date",
			"fingerprint", "last_run_id", "fetched_at").
		Values(string(l.Source), l.SourceID, l.SourceURL, l.Title,
			l.EstimatedValue, string(l.Modality), string(l.Status),
			l.Region, l.Locality, l.OrganizationName, l.OrganizationTaxID,
			l.PublicationDate, l.OpeningDate, l.ClosingDate,
			l.Fingerprint, runID, l.FetchedAt).
		Suffix(`ON CONFLICT (source, source_id) DO UPDATE SET
			status = EXCLUDED.status,
			estimated_value = EXCLUDED.estimated_value,
			closing_date = EXCLUDED.closing_date,
			fingerprint = EXCLUDED.fingerprint,
			last_run_id = EXCLUDED.last_run_id,
			fetched_at = EXCLUDED.fetched_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
