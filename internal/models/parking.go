package models

import "time"

// Parking is a lot with a fixed number of spaces and an hourly tariff.
type Parking struct {
	Code            string    `json:"code" yaml:"code"`
	Name            string    `json:"name" yaml:"name"`
	Location        string    `json:"location" yaml:"location"`
	TotalSpaces     int64     `json:"totalSpaces" yaml:"total_spaces"`
	AvailableSpaces int64     `json:"availableSpaces" yaml:"-"`
	HourlyFee       float64   `json:"hourlyFee" yaml:"hourly_fee"`
	CreatedAt       time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt       time.Time `json:"updatedAt" yaml:"-"`
}

// Occupied returns the number of spaces currently taken.
func (p *Parking) Occupied() int64 {
	return p.TotalSpaces - p.AvailableSpaces
}

// ParkingUpdate carries the mutable fields of a parking; nil means unchanged.
type ParkingUpdate struct {
	Name        *string  `json:"name"`
	Location    *string  `json:"location"`
	TotalSpaces *int64   `json:"totalSpaces"`
	HourlyFee   *float64 `json:"hourlyFee"`
}
