package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidVehicleType = errors.New("invalid vehicle type")

type VehicleType string

const (
	VehicleTwoWheeler  VehicleType = "two"
	VehicleFourWheeler VehicleType = "four"
)

func (t VehicleType) IsValid() bool {
	return t == VehicleTwoWheeler || t == VehicleFourWheeler
}

func ParseVehicleType(s string) (VehicleType, error) {
	t := VehicleType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVehicleType, s)
	}
	return t, nil
}

type Vehicle struct {
	ID     int         `json:"-"`
	Type   VehicleType `json:"vehicle_type"`
	Number string      `json:"vehicle_number"`
}
