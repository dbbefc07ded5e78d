package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type pgBookingRepository struct {
	db *sql.DB
}

func NewPgBookingRepository(db *sql.DB) repository.BookingRepository {
	return &pgBookingRepository{db: db}
}

const bookingSelect = `SELECT b.id, b.user_id, COALESCE(NULLIF(u.name, ''), u.username),
	       s.id, s.slot_name, s.is_available, s.created_at, s.updated_at,
	       v.id, v.vehicle_type, v.vehicle_number,
	       b.start_time, b.state, b.checkout_time, b.created_at, b.updated_at
	  FROM bookings b
	  JOIN users u ON u.id = b.user_id
	  JOIN parking_slots s ON s.id = b.slot_id
	  JOIN vehicles v ON v.id = b.vehicle_id`

func (r *pgBookingRepository) Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	query := `INSERT INTO bookings (user_id, slot_id, vehicle_id, start_time, state, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		booking.UserID, booking.SlotID, booking.Vehicle.ID, booking.StartTime, booking.State,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("BookingRepository.Create: %w", err)
	}
	booking.CreatedAt = booking.CreatedAt.In(time.UTC)
	booking.UpdatedAt = booking.UpdatedAt.In(time.UTC)
	return booking, nil
}

func (r *pgBookingRepository) FindByID(ctx context.Context, id int) (*domain.Booking, error) {
	booking, err := scanBooking(r.db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("BookingRepository.FindByID: %w", err)
	}
	return booking, nil
}

func (r *pgBookingRepository) Find(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("b.user_id = $%d", argID))
		args = append(args, *filter.UserID)
		argID++
	}
	if len(filter.States) > 0 {
		conditions = append(conditions, fmt.Sprintf("b.state IN (%s)", placeholders(argID, len(filter.States))))
		for _, s := range filter.States {
			args = append(args, s)
		}
		argID += len(filter.States)
	}

	query := bookingSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY b.start_time DESC, b.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("BookingRepository.Find: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("BookingRepository.Find (scanning row): %w", err)
		}
		bookings = append(bookings, *booking)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("BookingRepository.Find (rows error): %w", err)
	}
	return bookings, nil
}

func (r *pgBookingRepository) FindOpenVehicleTypeBySlot(ctx context.Context, slotID int) (domain.VehicleType, error) {
	query := `SELECT v.vehicle_type
	            FROM bookings b JOIN vehicles v ON v.id = b.vehicle_id
	           WHERE b.slot_id = $1 AND b.state IN ($2, $3)
	           LIMIT 2`
	rows, err := r.db.QueryContext(ctx, query, slotID, domain.BookingActive, domain.BookingCheckoutRequested)
	if err != nil {
		return "", fmt.Errorf("BookingRepository.FindOpenVehicleTypeBySlot: %w", err)
	}
	defer rows.Close()

	var types []domain.VehicleType
	for rows.Next() {
		var t domain.VehicleType
		if err := rows.Scan(&t); err != nil {
			return "", fmt.Errorf("BookingRepository.FindOpenVehicleTypeBySlot (scanning row): %w", err)
		}
		types = append(types, t)
	}
	if err = rows.Err(); err != nil {
		return "", fmt.Errorf("BookingRepository.FindOpenVehicleTypeBySlot (rows error): %w", err)
	}
	switch len(types) {
	case 0:
		return "", repository.ErrNotFound
	case 1:
		return types[0], nil
	default:
		return "", repository.ErrMultipleActive
	}
}

func (r *pgBookingRepository) Transition(ctx context.Context, id int, from, to domain.BookingState, checkoutTime *time.Time) error {
	query := `UPDATE bookings
	             SET state = $1, checkout_time = COALESCE($2, checkout_time), updated_at = CURRENT_TIMESTAMP
	           WHERE id = $3 AND state = $4`
	var checkoutVal sql.NullTime
	if checkoutTime != nil {
		checkoutVal = sql.NullTime{Time: *checkoutTime, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, to, checkoutVal, id, from)
	if err != nil {
		return fmt.Errorf("BookingRepository.Transition: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("BookingRepository.Transition (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrStaleState
	}
	return nil
}

func (r *pgBookingRepository) CountOpenByVehicleType(ctx context.Context, vehicleType domain.VehicleType) (int, error) {
	query := `SELECT COUNT(*)
	            FROM bookings b JOIN vehicles v ON v.id = b.vehicle_id
	           WHERE b.state IN ($1, $2) AND v.vehicle_type = $3`
	var n int
	err := r.db.QueryRowContext(ctx, query, domain.BookingActive, domain.BookingCheckoutRequested, vehicleType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("BookingRepository.CountOpenByVehicleType: %w", err)
	}
	return n, nil
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	b := &domain.Booking{}
	err := row.Scan(
		&b.ID, &b.UserID, &b.UserName,
		&b.Slot.ID, &b.Slot.Name, &b.Slot.IsAvailable, &b.Slot.CreatedAt, &b.Slot.UpdatedAt,
		&b.Vehicle.ID, &b.Vehicle.Type, &b.Vehicle.Number,
		&b.StartTime, &b.State, &b.CheckoutTime, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.SlotID = b.Slot.ID
	b.StartTime = b.StartTime.In(time.UTC)
	if b.CheckoutTime.Valid {
		b.CheckoutTime.Time = b.CheckoutTime.Time.In(time.UTC)
	}
	b.CreatedAt = b.CreatedAt.In(time.UTC)
	b.UpdatedAt = b.UpdatedAt.In(time.UTC)
	return b, nil
}
