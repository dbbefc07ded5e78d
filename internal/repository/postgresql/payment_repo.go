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

type pgPaymentRepository struct {
	db *sql.DB
}

func NewPgPaymentRepository(db *sql.DB) repository.PaymentRepository {
	return &pgPaymentRepository{db: db}
}

const paymentColumns = `id, booking_id, method, amount::float8, reference, paid_at`

func (r *pgPaymentRepository) Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	query := `INSERT INTO payments (booking_id, method, amount, reference, paid_at)
	           VALUES ($1, $2, $3, $4, $5)
	           RETURNING id`
	err := r.db.QueryRowContext(ctx, query, p.BookingID, p.Method, p.Amount, p.Reference, p.PaidAt).Scan(&p.ID)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "payments_booking_id_key":
				return nil, fmt.Errorf("%w: booking %d is already paid", repository.ErrDuplicateEntry, p.BookingID)
			case "payments_reference_key":
				return nil, fmt.Errorf("%w: payment reference '%s' already recorded", repository.ErrDuplicateEntry, p.Reference)
			}
		}
		return nil, fmt.Errorf("PaymentRepository.Create: %w", err)
	}
	return p, nil
}

func (r *pgPaymentRepository) FindByBookingID(ctx context.Context, bookingID int) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PaymentRepository.FindByBookingID: %w", err)
	}
	return p, nil
}

func (r *pgPaymentRepository) FindByBookingIDs(ctx context.Context, bookingIDs []int) (map[int]domain.Payment, error) {
	payments := make(map[int]domain.Payment, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return payments, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE booking_id IN (%s)`, paymentColumns, placeholders(1, len(bookingIDs)))
	args := make([]interface{}, len(bookingIDs))
	for i, id := range bookingIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("PaymentRepository.FindByBookingIDs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("PaymentRepository.FindByBookingIDs (scanning row): %w", err)
		}
		payments[p.BookingID] = *p
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("PaymentRepository.FindByBookingIDs (rows error): %w", err)
	}
	return payments, nil
}

func (r *pgPaymentRepository) SumBetween(ctx context.Context, from, to time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::float8 FROM payments WHERE paid_at >= $1 AND paid_at < $2`
	var total float64
	if err := r.db.QueryRowContext(ctx, query, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("PaymentRepository.SumBetween: %w", err)
	}
	return total, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	if err := row.Scan(&p.ID, &p.BookingID, &p.Method, &p.Amount, &p.Reference, &p.PaidAt); err != nil {
		return nil, err
	}
	p.PaidAt = p.PaidAt.In(time.UTC)
	return p, nil
}
