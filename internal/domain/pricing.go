package domain

import "time"

// PricingTable holds the hourly rates applied to every booking.
type PricingTable struct {
	ID              int       `json:"-"`
	TwoWheelerRate  float64   `json:"two_wheeler_price"`
	FourWheelerRate float64   `json:"four_wheeler_price"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (p PricingTable) RateFor(t VehicleType) float64 {
	if t == VehicleTwoWheeler {
		return p.TwoWheelerRate
	}
	return p.FourWheelerRate
}

type UpdatePricingDTO struct {
	Two  *float64 `json:"two" binding:"required,min=0,max=9999.99"`
	Four *float64 `json:"four" binding:"required,min=0,max=9999.99"`
}
