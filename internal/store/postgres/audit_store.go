package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flipscout/flipscout/internal/domain"
)

// AuditStore reads the deal audit trail. Writes happen inside DealStore
// transactions; this store is query-only.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// ListByDeal returns a deal's audit entries in sequence order.
func (s *AuditStore) ListByDeal(ctx context.Context, dealID string) ([]domain.AuditLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT deal_id, sequence_no, old_state, new_state, reason, created_at
		FROM deal_audit_log
		WHERE deal_id = $1
		ORDER BY sequence_no ASC`, dealID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries for %s: %w", dealID, err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// List returns audit entries across all deals, newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditLogEntry, error) {
	query := `
		SELECT deal_id, sequence_no, old_state, new_state, reason, created_at
		FROM deal_audit_log WHERE 1=1`
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
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]domain.AuditLogEntry, error) {
	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var oldState, newState string
		if err := rows.Scan(&e.DealID, &e.SequenceNo, &oldState, &newState, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		e.OldState = domain.DealState(oldState)
		e.NewState = domain.DealState(newState)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: audit entry rows: %w", err)
	}
	return entries, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
