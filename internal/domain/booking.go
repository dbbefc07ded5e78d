package domain

import (
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"
)

// BookingState is the lifecycle position of a parking booking.
type BookingState string

const (
	BookingActive            BookingState = "active"
	BookingCheckoutRequested BookingState = "checkout_requested"
	BookingClosed            BookingState = "closed"
)

var bookingTransitions = map[BookingState][]BookingState{
	BookingActive:            {BookingCheckoutRequested},
	BookingCheckoutRequested: {BookingClosed},
	BookingClosed:            {},
}

func (s BookingState) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingState) CanTransitionTo(target BookingState) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// HoldsSlot reports whether a booking in this state keeps its slot occupied.
func (s BookingState) HoldsSlot() bool {
	return s == BookingActive || s == BookingCheckoutRequested
}

func ParseBookingState(s string) (BookingState, error) {
	state := BookingState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid booking state: %q", s)
	}
	return state, nil
}

type Booking struct {
	ID           int          `json:"id"`
	UserID       int          `json:"user_id"`
	UserName     string       `json:"user_name"`
	SlotID       int          `json:"-"`
	Slot         ParkingSlot  `json:"parking_spot"`
	Vehicle      Vehicle      `json:"vehicle"`
	StartTime    time.Time    `json:"parking_time"`
	State        BookingState `json:"state"`
	CheckoutTime null.Time    `json:"check_out_time"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsActive mirrors the legacy parking_status flag: true until staff accept the checkout.
func (b *Booking) IsActive() bool {
	return b.State.HoldsSlot()
}

// CheckedOut mirrors the legacy check_out flag: true once the user asked to leave.
func (b *Booking) CheckedOut() bool {
	return b.State == BookingCheckoutRequested || b.State == BookingClosed
}

// BookingView is the response shape of a booking with its computed price.
type BookingView struct {
	*Booking
	IsActive      bool        `json:"parking_status"`
	CheckedOut    bool        `json:"check_out"`
	Price         float64     `json:"price"`
	PaymentMethod null.String `json:"payment,omitempty"`
}

type BookSlotDTO struct {
	SlotID        int    `json:"parking_space" binding:"required,min=1"`
	VehicleType   string `json:"vehicle_type" binding:"required,oneof=two four"`
	VehicleNumber string `json:"vehicle_number" binding:"required,max=10"`
}

type BookingFilter struct {
	UserID *int
	States []BookingState
}
