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

// DealStore implements domain.DealStore using PostgreSQL. Every transition
// runs in a transaction that locks the deal row, appends the audit entry, and
// only then flips the state, so a crash can leave an entry without the flip
// but never a flip without its entry. The single-active-deal invariant is
// backed by a partial unique index over non-terminal states; the resulting
// unique violation surfaces as domain.ErrConflict.
type DealStore struct {
	pool *pgxpool.Pool
}

// NewDealStore creates a new DealStore backed by the given connection pool.
func NewDealStore(pool *pgxpool.Pool) *DealStore {
	return &DealStore{pool: pool}
}

const dealCols = `id, item_name, item_category, listing, score, state,
	investment_amount, created_at, updated_at, approved_at, completed_at`

// Create inserts a deal in the found state together with its first audit
// entry. Returns domain.ErrConflict when another deal holds the active slot
// and domain.ErrAlreadyExists on a duplicate ID.
func (s *DealStore) Create(ctx context.Context, deal domain.Deal, reason string) error {
	listingJSON, err := json.Marshal(deal.Listing)
	if err != nil {
		return fmt.Errorf("postgres: marshal listing: %w", err)
	}
	scoreJSON, err := json.Marshal(deal.Score)
	if err != nil {
		return fmt.Errorf("postgres: marshal score: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create deal: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO deals (
			id, item_name, item_category, listing, score, state,
			investment_amount, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)`,
		deal.ID, deal.Identity.Name, deal.Identity.Category,
		listingJSON, scoreJSON, string(domain.StateFound), now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "deals_single_active" {
				return domain.ErrConflict
			}
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert deal %s: %w", deal.ID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO deal_audit_log (deal_id, sequence_no, old_state, new_state, reason, created_at)
		VALUES ($1, 1, '', $2, $3, $4)`,
		deal.ID, string(domain.StateFound), reason, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert audit entry for %s: %w", deal.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create deal %s: %w", deal.ID, err)
	}
	return nil
}

// Transition atomically moves a deal between states with an audit entry.
func (s *DealStore) Transition(ctx context.Context, id string, from, to domain.DealState, reason string) error {
	return s.transition(ctx, id, from, to, reason, "")
}

// Approve moves a pending deal to the approved state and records the
// committed investment amount.
func (s *DealStore) Approve(ctx context.Context, id string, investment float64, reason string) error {
	return s.transition(ctx, id, domain.StatePendingApproval, domain.StateApproved, reason,
		fmt.Sprintf("%.2f", investment))
}

func (s *DealStore) transition(ctx context.Context, id string, from, to domain.DealState, reason, investment string) error {
	if !from.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	err = tx.QueryRow(ctx,
		`SELECT state FROM deals WHERE id = $1 FOR UPDATE`, id,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: lock deal %s: %w", id, err)
	}
	if domain.DealState(current) != from {
		return domain.ErrInvalidTransition
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO deal_audit_log (deal_id, sequence_no, old_state, new_state, reason, created_at)
		SELECT $1, COALESCE(MAX(sequence_no), 0) + 1, $2, $3, $4, $5
		FROM deal_audit_log WHERE deal_id = $1`,
		id, string(from), string(to), reason, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert audit entry for %s: %w", id, err)
	}

	query := `UPDATE deals SET state = $2, updated_at = $3`
	args := []any{id, string(to), now}
	if to == domain.StateApproved {
		query += `, approved_at = $3, investment_amount = $4`
		args = append(args, investment)
	}
	if to == domain.StateCompleted {
		query += `, completed_at = $3`
	}
	query += ` WHERE id = $1`

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: update deal %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transition %s -> %s for %s: %w", from, to, id, err)
	}
	return nil
}

// GetByID retrieves a deal by its primary key.
func (s *DealStore) GetByID(ctx context.Context, id string) (domain.Deal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+dealCols+` FROM deals WHERE id = $1`, id)
	d, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deal{}, domain.ErrNotFound
		}
		return domain.Deal{}, fmt.Errorf("postgres: get deal %s: %w", id, err)
	}
	return d, nil
}

// GetActive returns the deal currently holding the active slot, or
// domain.ErrNotFound when the slot is free.
func (s *DealStore) GetActive(ctx context.Context) (domain.Deal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+dealCols+` FROM deals
		WHERE state IN ('found', 'scored', 'pending_approval', 'approved')
		LIMIT 1`)
	d, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deal{}, domain.ErrNotFound
		}
		return domain.Deal{}, fmt.Errorf("postgres: get active deal: %w", err)
	}
	return d, nil
}

// CountNonTerminal counts deals in non-terminal states.
func (s *DealStore) CountNonTerminal(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM deals
		WHERE state IN ('found', 'scored', 'pending_approval', 'approved')`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count non-terminal deals: %w", err)
	}
	return n, nil
}

// List returns deals newest first, filtered by opts.
func (s *DealStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Deal, error) {
	query := `SELECT ` + dealCols + ` FROM deals WHERE 1=1`
	args := []any{}
	argIdx := 1

	if len(opts.States) > 0 {
		states := make([]string, len(opts.States))
		for i, st := range opts.States {
			states[i] = string(st)
		}
		query += fmt.Sprintf(" AND state = ANY($%d)", argIdx)
		args = append(args, states)
		argIdx++
	}
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
		return nil, fmt.Errorf("postgres: list deals: %w", err)
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list deals rows: %w", err)
	}
	return deals, nil
}

func scanDeal(row pgx.Row) (domain.Deal, error) {
	var d domain.Deal
	var state string
	var listingJSON, scoreJSON []byte

	err := row.Scan(
		&d.ID, &d.Identity.Name, &d.Identity.Category,
		&listingJSON, &scoreJSON, &state,
		&d.InvestmentAmount, &d.CreatedAt, &d.UpdatedAt,
		&d.ApprovedAt, &d.CompletedAt,
	)
	if err != nil {
		return domain.Deal{}, err
	}

	if err := json.Unmarshal(listingJSON, &d.Listing); err != nil {
		return domain.Deal{}, fmt.Errorf("unmarshal listing: %w", err)
	}
	if err := json.Unmarshal(scoreJSON, &d.Score); err != nil {
		return domain.Deal{}, fmt.Errorf("unmarshal score: %w", err)
	}
	d.State = domain.DealState(state)
	return d, nil
}

var _ domain.DealStore = (*DealStore)(nil)
