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

type pgParkingSlotRepository struct {
	db *sql.DB
}

func NewPgParkingSlotRepository(db *sql.DB) repository.ParkingSlotRepository {
	return &pgParkingSlotRepository{db: db}
}

const slotColumns = `id, slot_name, is_available, created_at, updated_at`

func (r *pgParkingSlotRepository) Create(ctx context.Context, slot *domain.ParkingSlot) (*domain.ParkingSlot, error) {
	query := `INSERT INTO parking_slots (slot_name, is_available, created_at, updated_at)
	           VALUES ($1, $2, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, slot.Name, slot.IsAvailable).
		Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "parking_slots_slot_name_key" {
			return nil, fmt.Errorf("%w: slot '%s' already exists", repository.ErrDuplicateEntry, slot.Name)
		}
		return nil, fmt.Errorf("ParkingSlotRepository.Create: %w", err)
	}
	slot.CreatedAt = slot.CreatedAt.In(time.UTC)
	slot.UpdatedAt = slot.UpdatedAt.In(time.UTC)
	return slot, nil
}

func (r *pgParkingSlotRepository) FindByID(ctx context.Context, id int) (*domain.ParkingSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM parking_slots WHERE id = $1`
	slot, err := scanSlot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingSlotRepository.FindByID: %w", err)
	}
	return slot, nil
}

func (r *pgParkingSlotRepository) FindAll(ctx context.Context) ([]domain.ParkingSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM parking_slots ORDER BY slot_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ParkingSlotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var slots []domain.ParkingSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("ParkingSlotRepository.FindAll (scanning row): %w", err)
		}
		slots = append(slots, *slot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingSlotRepository.FindAll (rows error): %w", err)
	}
	return slots, nil
}

func (r *pgParkingSlotRepository) Claim(ctx context.Context, id int) error {
	query := `UPDATE parking_slots SET is_available = FALSE, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $1 AND is_available = TRUE`
	return r.setAvailability(ctx, "Claim", query, id)
}

func (r *pgParkingSlotRepository) Release(ctx context.Context, id int) error {
	query := `UPDATE parking_slots SET is_available = TRUE, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $1 AND is_available = FALSE`
	return r.setAvailability(ctx, "Release", query, id)
}

func (r *pgParkingSlotRepository) setAvailability(ctx context.Context, op, query string, id int) error {
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ParkingSlotRepository.%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ParkingSlotRepository.%s (checking rows affected): %w", op, err)
	}
	if rowsAffected == 0 {
		return repository.ErrStaleState
	}
	return nil
}

func (r *pgParkingSlotRepository) CountAvailable(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_slots WHERE is_available = TRUE`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ParkingSlotRepository.CountAvailable: %w", err)
	}
	return n, nil
}

func scanSlot(row rowScanner) (*domain.ParkingSlot, error) {
	slot := &domain.ParkingSlot{}
	if err := row.Scan(&slot.ID, &slot.Name, &slot.IsAvailable, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
		return nil, err
	}
	slot.CreatedAt = slot.CreatedAt.In(time.UTC)
	slot.UpdatedAt = slot.UpdatedAt.In(time.UTC)
	return slot, nil
}
