package inmemory

import (
	"context"
	"sort"
	"time"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type bookingRepo struct{ s *Store }

func (r *bookingRepo) Create(_ context.Context, booking *domain.Booking) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	row := bookingRow{
		id:        r.s.nextID("bookings"),
		userID:    booking.UserID,
		slotID:    booking.SlotID,
		vehicleID: booking.Vehicle.ID,
		startTime: booking.StartTime,
		state:     booking.State,
		createdAt: now,
		updatedAt: now,
	}
	r.s.bookings = append(r.s.bookings, row)
	booking.ID = row.id
	booking.CreatedAt, booking.UpdatedAt = now, now
	return booking, nil
}

func (r *bookingRepo) FindByID(_ context.Context, id int) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.s.bookings {
		if row.id == id {
			return r.s.hydrate(row), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *bookingRepo) Find(_ context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Booking
	for _, row := range r.s.bookings {
		if filter.UserID != nil && row.userID != *filter.UserID {
			continue
		}
		if len(filter.States) > 0 && !containsState(filter.States, row.state) {
			continue
		}
		out = append(out, *r.s.hydrate(row))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *bookingRepo) FindOpenVehicleTypeBySlot(_ context.Context, slotID int) (domain.VehicleType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var types []domain.VehicleType
	for _, row := range r.s.bookings {
		if row.slotID == slotID && row.state.HoldsSlot() {
			types = append(types, r.s.vehicleByID(row.vehicleID).Type)
		}
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

func (r *bookingRepo) Transition(_ context.Context, id int, from, to domain.BookingState, checkoutTime *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.bookings {
		row := &r.s.bookings[i]
		if row.id != id || row.state != from {
			continue
		}
		row.state = to
		if checkoutTime != nil {
			t := *checkoutTime
			row.checkoutTime = &t
		}
		row.updatedAt = time.Now().UTC()
		return nil
	}
	return repository.ErrStaleState
}

func (r *bookingRepo) CountOpenByVehicleType(_ context.Context, vehicleType domain.VehicleType) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, row := range r.s.bookings {
		if row.state.HoldsSlot() && r.s.vehicleByID(row.vehicleID).Type == vehicleType {
			n++
		}
	}
	return n, nil
}

func (s *Store) hydrate(row bookingRow) *domain.Booking {
	b := &domain.Booking{
		ID:        row.id,
		UserID:    row.userID,
		SlotID:    row.slotID,
		Vehicle:   s.vehicleByID(row.vehicleID),
		StartTime: row.startTime,
		State:     row.state,
		CreatedAt: row.createdAt,
		UpdatedAt: row.updatedAt,
	}
	if u := s.userByID(row.userID); u != nil {
		b.UserName = u.Name
		if b.UserName == "" {
			b.UserName = u.Username
		}
	}
	if slot := s.slotByID(row.slotID); slot != nil {
		b.Slot = *slot
	}
	if row.checkoutTime != nil {
		b.CheckoutTime.SetValid(*row.checkoutTime)
	}
	return b
}

func containsState(states []domain.BookingState, s domain.BookingState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
