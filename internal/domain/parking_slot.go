package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type ParkingSlot struct {
	ID          int       `json:"id"`
	Name        string    `json:"slot_name"`
	IsAvailable bool      `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SlotView is a slot as listed to a caller. VehicleType is nil for regular users,
// so the field is left out of their listing; staff get null for a free slot.
type SlotView struct {
	ParkingSlot
	VehicleType *null.String `json:"v_type,omitempty"`
}

type CreateSlotDTO struct {
	Name string `json:"slot_name" binding:"required,max=10"`
}
