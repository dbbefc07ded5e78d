package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type pgPricingRepository struct {
	db *sql.DB
}

func NewPgPricingRepository(db *sql.DB) repository.PricingRepository {
	return &pgPricingRepository{db: db}
}

// Get returns the first pricing row. The table is seeded out of band.
func (r *pgPricingRepository) Get(ctx context.Context) (*domain.PricingTable, error) {
	query := `SELECT id, two_wheeler_rate::float8, four_wheeler_rate::float8, updated_at
	            FROM pricing ORDER BY id LIMIT 1`
	p := &domain.PricingTable{}
	err := r.db.QueryRowContext(ctx, query).Scan(&p.ID, &p.TwoWheelerRate, &p.FourWheelerRate, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PricingRepository.Get: %w", err)
	}
	p.UpdatedAt = p.UpdatedAt.In(time.UTC)
	return p, nil
}

func (r *pgPricingRepository) Update(ctx context.Context, twoRate, fourRate float64) (*domain.PricingTable, error) {
	query := `UPDATE pricing
	             SET two_wheeler_rate = $1, four_wheeler_rate = $2, updated_at = CURRENT_TIMESTAMP
	           WHERE id = (SELECT id FROM pricing ORDER BY id LIMIT 1)
	       RETURNING id, two_wheeler_rate::float8, four_wheeler_rate::float8, updated_at`
	p := &domain.PricingTable{}
	err := r.db.QueryRowContext(ctx, query, twoRate, fourRate).Scan(&p.ID, &p.TwoWheelerRate, &p.FourWheelerRate, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PricingRepository.Update: %w", err)
	}
	p.UpdatedAt = p.UpdatedAt.In(time.UTC)
	return p, nil
}
