package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type ReportService struct {
	bookingRepo repository.BookingRepository
	slotRepo    repository.ParkingSlotRepository
	paymentRepo repository.PaymentRepository
	location    *time.Location
	logger      *logrus.Logger
	now         func() time.Time
}

func NewReportService(bookingRepo repository.BookingRepository, slotRepo repository.ParkingSlotRepository,
	paymentRepo repository.PaymentRepository, location *time.Location, logger *logrus.Logger) *ReportService {
	if location == nil {
		location = time.UTC
	}
	return &ReportService{
		bookingRepo: bookingRepo,
		slotRepo:    slotRepo,
		paymentRepo: paymentRepo,
		location:    location,
		logger:      logger,
		now:         time.Now,
	}
}

// AvailabilityBreakdown counts open bookings per vehicle type and the free slots.
// The three counts are read independently.
func (s *ReportService) AvailabilityBreakdown(ctx context.Context) (*domain.AvailabilityBreakdown, error) {
	two, err := s.bookingRepo.CountOpenByVehicleType(ctx, domain.VehicleTwoWheeler)
	if err != nil {
		return nil, err
	}
	four, err := s.bookingRepo.CountOpenByVehicleType(ctx, domain.VehicleFourWheeler)
	if err != nil {
		return nil, err
	}
	available, err := s.slotRepo.CountAvailable(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.AvailabilityBreakdown{TwoWheelers: two, FourWheelers: four, Available: available}, nil
}

// RevenueSummary totals payments for today and month-to-date in the configured time zone.
func (s *ReportService) RevenueSummary(ctx context.Context) (*domain.RevenueSummary, error) {
	now := s.now().In(s.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location)

	daily, err := s.paymentRepo.SumBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	monthly, err := s.paymentRepo.SumBetween(ctx, monthStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return &domain.RevenueSummary{Daily: roundCents(daily), Monthly: roundCents(monthly)}, nil
}
