package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

const (
	msgBookingConfirmed  = "Your parking booking has been confirmed."
	msgCheckoutRequested = "Check Out request generated for: %s"
	msgCheckoutAccepted  = "Check Out request accepted for: %s"
)

type ParkingService struct {
	slotRepo    repository.ParkingSlotRepository
	vehicleRepo repository.VehicleRepository
	bookingRepo repository.BookingRepository
	pricingRepo repository.PricingRepository
	paymentRepo repository.PaymentRepository
	notifier    Notifier
	events      *eventRecorder
	logger      *logrus.Logger
	now         func() time.Time
}

func NewParkingService(
	slotRepo repository.ParkingSlotRepository,
	vehicleRepo repository.VehicleRepository,
	bookingRepo repository.BookingRepository,
	pricingRepo repository.PricingRepository,
	paymentRepo repository.PaymentRepository,
	eventRepo repository.BookingEventRepository,
	notifier Notifier,
	publisher EventPublisher,
	logger *logrus.Logger,
) *ParkingService {
	return &ParkingService{
		slotRepo:    slotRepo,
		vehicleRepo: vehicleRepo,
		bookingRepo: bookingRepo,
		pricingRepo: pricingRepo,
		paymentRepo: paymentRepo,
		notifier:    notifier,
		events:      &eventRecorder{repo: eventRepo, publisher: publisher, logger: logger},
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// --- Slots ---

// ListSlots returns every slot. Staff also see the vehicle type parked in each occupied slot.
func (s *ParkingService) ListSlots(ctx context.Context, actor domain.Actor) ([]domain.SlotView, error) {
	slots, err := s.slotRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]domain.SlotView, 0, len(slots))
	for _, slot := range slots {
		view := domain.SlotView{ParkingSlot: slot}
		if actor.IsStaff() {
			view.VehicleType = &null.String{}
			vehicleType, err := s.bookingRepo.FindOpenVehicleTypeBySlot(ctx, slot.ID)
			switch {
			case err == nil:
				*view.VehicleType = null.StringFrom(string(vehicleType))
			case errors.Is(err, repository.ErrNotFound):
			default:
				// unknown rather than failing the whole listing
				s.logger.WithError(err).WithField("slot_id", slot.ID).Warn("Could not resolve vehicle type for slot")
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *ParkingService) CreateSlot(ctx context.Context, actor domain.Actor, dto domain.CreateSlotDTO) (*domain.ParkingSlot, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	slot, err := s.slotRepo.Create(ctx, &domain.ParkingSlot{Name: dto.Name, IsAvailable: true})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"slot_id": slot.ID, "slot_name": slot.Name}).Info("Parking slot created")
	return slot, nil
}

func (s *ParkingService) GetSlot(ctx context.Context, id int) (*domain.ParkingSlot, error) {
	return s.slotRepo.FindByID(ctx, id)
}

// --- Booking lifecycle ---

func (s *ParkingService) Book(ctx context.Context, actor domain.Actor, dto domain.BookSlotDTO) (*domain.BookingView, error) {
	vehicleType, err := domain.ParseVehicleType(dto.VehicleType)
	if err != nil {
		return nil, err
	}
	slot, err := s.slotRepo.FindByID(ctx, dto.SlotID)
	if err != nil {
		return nil, fmt.Errorf("parking slot %d: %w", dto.SlotID, err)
	}
	if !slot.IsAvailable {
		return nil, ErrSlotOccupied
	}

	userID := actor.UserID
	active, err := s.bookingRepo.Find(ctx, domain.BookingFilter{UserID: &userID, States: []domain.BookingState{domain.BookingActive}})
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, ErrActiveBookingExists
	}

	if err := s.slotRepo.Claim(ctx, slot.ID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrSlotOccupied
		}
		return nil, err
	}
	slot.IsAvailable = false

	vehicle, err := s.vehicleRepo.GetOrCreate(ctx, vehicleType, dto.VehicleNumber)
	if err != nil {
		s.releaseClaim(ctx, slot.ID)
		return nil, err
	}

	booking, err := s.bookingRepo.Create(ctx, &domain.Booking{
		UserID:    actor.UserID,
		UserName:  actor.DisplayName(),
		SlotID:    slot.ID,
		Slot:      *slot,
		Vehicle:   *vehicle,
		StartTime: s.now(),
		State:     domain.BookingActive,
	})
	if err != nil {
		s.releaseClaim(ctx, slot.ID)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"user_id":        actor.UserID,
		"slot":           slot.Name,
		"vehicle_type":   vehicle.Type,
		"vehicle_number": vehicle.Number,
	}).Info("Parking slot booked")

	s.notify(ctx, booking.UserID, msgBookingConfirmed)
	s.events.record(ctx, booking, booking.StartTime)

	table := s.pricingTable(ctx)
	return s.view(booking, table, null.String{}), nil
}

func (s *ParkingService) releaseClaim(ctx context.Context, slotID int) {
	if err := s.slotRepo.Release(ctx, slotID); err != nil {
		s.logger.WithError(err).WithField("slot_id", slotID).Error("Could not release slot after failed booking")
	}
}

// RequestCheckout moves the caller's single active booking to checkout_requested and alerts staff.
func (s *ParkingService) RequestCheckout(ctx context.Context, actor domain.Actor) (*domain.BookingView, error) {
	userID := actor.UserID
	active, err := s.bookingRepo.Find(ctx, domain.BookingFilter{UserID: &userID, States: []domain.BookingState{domain.BookingActive}})
	if err != nil {
		return nil, err
	}
	switch len(active) {
	case 0:
		return nil, fmt.Errorf("%w: no active booking", repository.ErrNotFound)
	case 1:
	default:
		return nil, repository.ErrMultipleActive
	}

	booking := &active[0]
	checkoutTime := s.now()
	if err := s.bookingRepo.Transition(ctx, booking.ID, domain.BookingActive, domain.BookingCheckoutRequested, &checkoutTime); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	booking.State = domain.BookingCheckoutRequested
	booking.CheckoutTime = null.TimeFrom(checkoutTime)

	s.logger.WithFields(logrus.Fields{"booking_id": booking.ID, "slot": booking.Slot.Name}).Info("Checkout requested")

	if err := s.notifier.NotifyStaff(ctx, fmt.Sprintf(msgCheckoutRequested, booking.Slot.Name)); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Could not notify staff about checkout")
	}
	s.events.record(ctx, booking, checkoutTime)

	table := s.pricingTable(ctx)
	return s.view(booking, table, null.String{}), nil
}

// AcceptCheckout closes a booking awaiting checkout and frees its slot.
func (s *ParkingService) AcceptCheckout(ctx context.Context, actor domain.Actor, bookingID int) (*domain.BookingView, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	booking, err := s.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", bookingID, err)
	}
	if !booking.State.CanTransitionTo(domain.BookingClosed) {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, booking.ID, booking.State)
	}

	if err := s.bookingRepo.Transition(ctx, booking.ID, domain.BookingCheckoutRequested, domain.BookingClosed, nil); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	booking.State = domain.BookingClosed

	if err := s.slotRepo.Release(ctx, booking.SlotID); err != nil {
		if !errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("releasing slot %d: %w", booking.SlotID, err)
		}
		s.logger.WithField("slot_id", booking.SlotID).Warn("Slot was already available when checkout was accepted")
	}
	booking.Slot.IsAvailable = true

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"slot":        booking.Slot.Name,
		"accepted_by": actor.UserID,
	}).Info("Checkout accepted")

	s.notify(ctx, booking.UserID, fmt.Sprintf(msgCheckoutAccepted, booking.Slot.Name))
	s.events.record(ctx, booking, s.now())

	table := s.pricingTable(ctx)
	return s.view(booking, table, s.paymentMethods(ctx, []domain.Booking{*booking})[booking.ID]), nil
}

// ListCurrentBookings returns active bookings: all of them for staff, the caller's own otherwise.
func (s *ParkingService) ListCurrentBookings(ctx context.Context, actor domain.Actor) ([]domain.BookingView, error) {
	filter := domain.BookingFilter{States: []domain.BookingState{domain.BookingActive}}
	if !actor.IsStaff() {
		filter.UserID = &actor.UserID
	}
	return s.listViews(ctx, filter, false)
}

// ListBookingHistory returns closed bookings for staff, and the caller's checked-out bookings otherwise.
func (s *ParkingService) ListBookingHistory(ctx context.Context, actor domain.Actor) ([]domain.BookingView, error) {
	filter := domain.BookingFilter{States: []domain.BookingState{domain.BookingClosed}}
	if !actor.IsStaff() {
		filter.UserID = &actor.UserID
		filter.States = []domain.BookingState{domain.BookingCheckoutRequested, domain.BookingClosed}
	}
	return s.listViews(ctx, filter, true)
}

func (s *ParkingService) ListCheckoutQueue(ctx context.Context, actor domain.Actor) ([]domain.BookingView, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return s.listViews(ctx, domain.BookingFilter{States: []domain.BookingState{domain.BookingCheckoutRequested}}, true)
}

func (s *ParkingService) GetBooking(ctx context.Context, actor domain.Actor, id int) (*domain.BookingView, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && booking.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	table := s.pricingTable(ctx)
	return s.view(booking, table, s.paymentMethods(ctx, []domain.Booking{*booking})[booking.ID]), nil
}

func (s *ParkingService) listViews(ctx context.Context, filter domain.BookingFilter, withPayment bool) ([]domain.BookingView, error) {
	bookings, err := s.bookingRepo.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	table := s.pricingTable(ctx)

	var methods map[int]null.String
	if withPayment {
		methods = s.paymentMethods(ctx, bookings)
	}

	views := make([]domain.BookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, *s.view(&bookings[i], table, methods[bookings[i].ID]))
	}
	return views, nil
}

// paymentMethods looks up recorded payment methods. Lookup failures yield no method.
func (s *ParkingService) paymentMethods(ctx context.Context, bookings []domain.Booking) map[int]null.String {
	methods := make(map[int]null.String, len(bookings))
	if len(bookings) == 0 || s.paymentRepo == nil {
		return methods
	}
	ids := make([]int, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	payments, err := s.paymentRepo.FindByBookingIDs(ctx, ids)
	if err != nil {
		s.logger.WithError(err).Warn("Could not load payment methods")
		return methods
	}
	for id, p := range payments {
		methods[id] = null.StringFrom(p.Method)
	}
	return methods
}

// pricingTable falls back to zero rates when pricing has not been seeded yet.
func (s *ParkingService) pricingTable(ctx context.Context) domain.PricingTable {
	table, err := s.pricingRepo.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Pricing unavailable, prices reported as 0")
		return domain.PricingTable{}
	}
	return *table
}

func (s *ParkingService) view(b *domain.Booking, table domain.PricingTable, method null.String) *domain.BookingView {
	return &domain.BookingView{
		Booking:       b,
		IsActive:      b.IsActive(),
		CheckedOut:    b.CheckedOut(),
		Price:         BookingPrice(b, table, s.now()),
		PaymentMethod: method,
	}
}

func (s *ParkingService) notify(ctx context.Context, userID int, content string) {
	if err := s.notifier.Notify(ctx, userID, content); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Could not deliver notification")
	}
}
