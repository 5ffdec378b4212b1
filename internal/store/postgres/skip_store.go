package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flipscout/flipscout/internal/domain"
)

// SkipStore implements domain.SkipStore using PostgreSQL.
type SkipStore struct {
	pool *pgxpool.Pool
}

// NewSkipStore creates a new SkipStore backed by the given connection pool.
func NewSkipStore(pool *pgxpool.Pool) *SkipStore {
	return &SkipStore{pool: pool}
}

const skipCols = `id, listing, score, reason, detail, total_score, created_at, resurfaced_at`

// Record stores a skipped candidate.
func (s *SkipStore) Record(ctx context.Context, skip domain.SkippedListing) error {
	listingJSON, err := json.Marshal(skip.Listing)
	if err != nil {
		return fmt.Errorf("postgres: marshal skipped listing: %w", err)
	}
	var scoreJSON []byte
	if skip.Score != nil {
		scoreJSON, err = json.Marshal(skip.Score)
		if err != nil {
			return fmt.Errorf("postgres: marshal skip score: %w", err)
		}
	}

	createdAt := skip.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO skipped_listings (id, listing, score, reason, detail, total_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		skip.ID, listingJSON, scoreJSON, string(skip.Reason), skip.Detail, skip.TotalScore, createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: record skip %s: %w", skip.ID, err)
	}
	return nil
}

// ListResurfaceable returns conflict skips awaiting re-evaluation, best
// score first.
func (s *SkipStore) ListResurfaceable(ctx context.Context, limit int) ([]domain.SkippedListing, error) {
	query := `
		SELECT ` + skipCols + ` FROM skipped_listings
		WHERE reason = $1 AND resurfaced_at IS NULL
		ORDER BY total_score DESC`
	args := []any{string(domain.SkipConflict)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resurfaceable skips: %w", err)
	}
	defer rows.Close()

	return scanSkips(rows)
}

// MarkResurfaced stamps a skip as re-evaluated so it is not picked up again.
func (s *SkipStore) MarkResurfaced(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE skipped_listings SET resurfaced_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark skip %s resurfaced: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns skips newest first, filtered by opts.
func (s *SkipStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.SkippedListing, error) {
	query := `SELECT ` + skipCols + ` FROM skipped_listings WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list skips: %w", err)
	}
	defer rows.Close()

	return scanSkips(rows)
}

func scanSkips(rows pgx.Rows) ([]domain.SkippedListing, error) {
	var skips []domain.SkippedListing
	for rows.Next() {
		var sk domain.SkippedListing
		var reason string
		var listingJSON, scoreJSON []byte

		err := rows.Scan(&sk.ID, &listingJSON, &scoreJSON, &reason,
			&sk.Detail, &sk.TotalScore, &sk.CreatedAt, &sk.ResurfacedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan skip: %w", err)
		}

		if err := json.Unmarshal(listingJSON, &sk.Listing); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal skipped listing: %w", err)
		}
		if len(scoreJSON) > 0 {
			var score domain.OpportunityScore
			if err := json.Unmarshal(scoreJSON, &score); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal skip score: %w", err)
			}
			sk.Score = &score
		}
		sk.Reason = domain.SkipReason(reason)
		skips = append(skips, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: skip rows: %w", err)
	}
	return skips, nil
}

var _ domain.SkipStore = (*SkipStore)(nil)
