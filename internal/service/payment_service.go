package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

var (
	ErrCardPaymentsUnavailable = errors.New("card payments are not configured")
	ErrPaymentDeclined         = errors.New("payment was declined")
)

// CardCharger charges a card through an external provider and returns the provider's reference.
type CardCharger interface {
	Charge(ctx context.Context, amount float64, paymentMethodID string, bookingID int) (string, error)
}

type PaymentService struct {
	paymentRepo repository.PaymentRepository
	bookingRepo repository.BookingRepository
	pricingRepo repository.PricingRepository
	charger     CardCharger
	logger      *logrus.Logger
	now         func() time.Time
}

// NewPaymentService builds the payment ledger. charger may be nil when card payments are off.
func NewPaymentService(paymentRepo repository.PaymentRepository, bookingRepo repository.BookingRepository,
	pricingRepo repository.PricingRepository, charger CardCharger, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		bookingRepo: bookingRepo,
		pricingRepo: pricingRepo,
		charger:     charger,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RecordPayment stores the payment for a checked-out booking at its final price.
// When a card payment method id is given the amount is charged first and the provider reference is kept.
func (s *PaymentService) RecordPayment(ctx context.Context, actor domain.Actor, dto domain.RecordPaymentDTO) (*domain.Payment, error) {
	booking, err := s.bookingRepo.FindByID(ctx, dto.BookingID)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", dto.BookingID, err)
	}
	if !actor.IsStaff() && booking.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	if !booking.CheckedOut() {
		return nil, fmt.Errorf("%w: booking %d has not been checked out", ErrInvalidTransition, booking.ID)
	}

	table, err := s.pricingRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pricing: %w", err)
	}

	amount := BookingPrice(booking, *table, s.now())
	reference := uuid.NewString()
	if dto.PaymentMethodID != "" {
		if s.charger == nil {
			return nil, ErrCardPaymentsUnavailable
		}
		if existing, err := s.paymentRepo.FindByBookingID(ctx, booking.ID); err == nil {
			return nil, fmt.Errorf("%w: booking %d is already paid (%s)", repository.ErrDuplicateEntry, booking.ID, existing.Reference)
		}
		reference, err = s.charger.Charge(ctx, amount, dto.PaymentMethodID, booking.ID)
		if err != nil {
			return nil, err
		}
	}

	payment, err := s.paymentRepo.Create(ctx, &domain.Payment{
		BookingID: booking.ID,
		Method:    dto.Method,
		Amount:    amount,
		Reference: reference,
		PaidAt:    s.now(),
	})
	if err != nil {
		if dto.PaymentMethodID != "" {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"reference":  reference,
			}).Error("Card was charged but the payment could not be stored")
		}
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"method":     payment.Method,
		"amount":     payment.Amount,
		"reference":  payment.Reference,
	}).Info("Payment recorded")
	return payment, nil
}

// HandlePaymentMessage ingests a payment confirmed by an external provider.
// Redelivered messages are acknowledged without error. ErrInvalidMessage marks a message that can never succeed.
// A message for a booking that is still active fails with ErrInvalidTransition and is retried later.
func (s *PaymentService) HandlePaymentMessage(ctx context.Context, body string) error {
	var msg domain.PaymentMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.BookingID <= 0 || msg.Method == "" {
		return fmt.Errorf("%w: booking_id and method are required", ErrInvalidMessage)
	}

	booking, err := s.bookingRepo.FindByID(ctx, msg.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: unknown booking %d", ErrInvalidMessage, msg.BookingID)
		}
		return err
	}
	if !booking.CheckedOut() {
		return fmt.Errorf("%w: booking %d has not been checked out", ErrInvalidTransition, booking.ID)
	}

	if msg.Amount <= 0 {
		table, err := s.pricingRepo.Get(ctx)
		if err != nil {
			return fmt.Errorf("loading pricing: %w", err)
		}
		msg.Amount = BookingPrice(booking, *table, s.now())
	}
	if msg.Reference == "" {
		msg.Reference = uuid.NewString()
	}
	if msg.PaidAt.IsZero() {
		msg.PaidAt = s.now()
	}

	_, err = s.paymentRepo.Create(ctx, &domain.Payment{
		BookingID: booking.ID,
		Method:    msg.Method,
		Amount:    roundCents(msg.Amount),
		Reference: msg.Reference,
		PaidAt:    msg.PaidAt.UTC(),
	})
	if errors.Is(err, repository.ErrDuplicateEntry) {
		if existing, findErr := s.paymentRepo.FindByBookingID(ctx, booking.ID); findErr == nil {
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"reference":  existing.Reference,
			}).Info("Payment already recorded, skipping message")
			return nil
		}
		// the reference belongs to another booking's payment
		return fmt.Errorf("%w: reference %q: %v", ErrInvalidMessage, msg.Reference, err)
	}
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"method":     msg.Method,
		"reference":  msg.Reference,
	}).Info("Payment ingested from queue")
	return nil
}
