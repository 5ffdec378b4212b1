package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flipscout/flipscout/internal/domain"
)

// ObservationStore implements domain.ObservationStore using PostgreSQL.
type ObservationStore struct {
	pool *pgxpool.Pool
}

// NewObservationStore creates a new ObservationStore backed by the given
// connection pool.
func NewObservationStore(pool *pgxpool.Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// GetObservations returns all stored price points for an item identity,
// newest first.
func (s *ObservationStore) GetObservations(ctx context.Context, id domain.Identity) ([]domain.PriceObservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, source_class, price, observed_at
		FROM price_observations
		WHERE item_name = $1 AND item_category = $2
		ORDER BY observed_at DESC`,
		id.Name, id.Category)
	if err != nil {
		return nil, fmt.Errorf("postgres: get observations for %s: %w", id.Key(), err)
	}
	defer rows.Close()

	var obs []domain.PriceObservation
	for rows.Next() {
		var o domain.PriceObservation
		var class string
		if err := rows.Scan(&o.SourceID, &class, &o.Price, &o.ObservedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan observation: %w", err)
		}
		o.Class = domain.SourceClass(class)
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: observation rows: %w", err)
	}
	return obs, nil
}

// Record appends price points for an item identity in a single batch.
func (s *ObservationStore) Record(ctx context.Context, id domain.Identity, obs []domain.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO price_observations (item_name, item_category, source, source_class, price, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, o := range obs {
		batch.Queue(query, id.Name, id.Category, o.SourceID, string(o.Class), o.Price, o.ObservedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range obs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: record observation batch item %d: %w", i, err)
		}
	}
	return nil
}

var _ domain.ObservationStore = (*ObservationStore)(nil)
