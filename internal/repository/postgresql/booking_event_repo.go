package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type pgBookingEventRepository struct {
	db *sql.DB
}

func NewPgBookingEventRepository(db *sql.DB) repository.BookingEventRepository {
	return &pgBookingEventRepository{db: db}
}

func (r *pgBookingEventRepository) Create(ctx context.Context, event *domain.BookingEvent) error {
	query := `INSERT INTO booking_events (event_id, booking_id, slot_id, user_id, state, occurred_at)
	           VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		event.EventID, event.BookingID, event.SlotID, event.UserID, event.State, event.OccurredAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("BookingEventRepository.Create: %w", err)
	}
	return nil
}
