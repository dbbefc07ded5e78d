package service

import "errors"

var (
	ErrSlotOccupied        = errors.New("parking slot is already booked")
	ErrActiveBookingExists = errors.New("user already has an active booking")
	ErrInvalidTransition   = errors.New("booking is not in a state that allows this action")
	ErrForbidden           = errors.New("operation not permitted for this role")
	ErrBookingIDRequired   = errors.New("booking_id is required")
	ErrInvalidMessage      = errors.New("invalid payment message")
)
