package service

import (
	"math"
	"time"

	"parkingspace/internal/domain"
)

// CalculatePrice bills whole elapsed hours between start and end, with a one hour minimum.
// Partial hours are dropped. Multi-day stays bill every elapsed hour.
func CalculatePrice(start, end time.Time, vehicleType domain.VehicleType, table domain.PricingTable) float64 {
	hours := int64(end.Sub(start) / time.Hour)
	if hours < 1 {
		hours = 1
	}
	return roundCents(float64(hours) * table.RateFor(vehicleType))
}

// BookingPrice is the final price once checkout was requested, otherwise a running estimate up to now.
func BookingPrice(b *domain.Booking, table domain.PricingTable, now time.Time) float64 {
	end := now
	if b.CheckoutTime.Valid {
		end = b.CheckoutTime.Time
	}
	return CalculatePrice(b.StartTime, end, b.Vehicle.Type, table)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
