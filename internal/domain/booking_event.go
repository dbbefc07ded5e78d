package domain

import "time"

// BookingEvent records one lifecycle transition of a booking.
type BookingEvent struct {
	ID         int64        `json:"-"`
	EventID    string       `json:"event_id"`
	BookingID  int          `json:"booking_id"`
	SlotID     int          `json:"slot_id"`
	UserID     int          `json:"user_id"`
	State      BookingState `json:"state"`
	OccurredAt time.Time    `json:"occurred_at"`
}
