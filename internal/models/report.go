package models

import "time"

const (
	GroupByNone    = ""
	GroupByParking = "parking"
	GroupByDay     = "day"
)

// DateRange is a half-open interval [From, To).
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

type OutgoingReport struct {
	Range        DateRange `json:"range"`
	Count        int       `json:"count"`
	TotalCharged float64   `json:"totalCharged"`
	Entries      []*Entry  `json:"entries"`
}

type IncomingReport struct {
	Range   DateRange `json:"range"`
	Count   int       `json:"count"`
	Entries []*Entry  `json:"entries"`
}

type ParkingOccupancy struct {
	ParkingCode   string  `json:"parkingCode"`
	ParkingName   string  `json:"parkingName"`
	TotalSpaces   int64   `json:"totalSpaces"`
	Occupied      int64   `json:"occupied"`
	Available     int64   `json:"available"`
	OccupancyRate float64 `json:"occupancyRate"`
}

type OccupancyReport struct {
	TotalSpaces   int64              `json:"totalSpaces"`
	Occupied      int64              `json:"occupied"`
	Available     int64              `json:"available"`
	OccupancyRate float64            `json:"occupancyRate"`
	Parkings      []ParkingOccupancy `json:"parkings"`
}

type RevenueGroup struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

type RevenueReport struct {
	Range        DateRange      `json:"range"`
	GroupBy      string         `json:"groupBy,omitempty"`
	Count        int            `json:"count"`
	TotalRevenue float64        `json:"totalRevenue"`
	Groups       []RevenueGroup `json:"groups,omitempty"`
}

type EntriesReport struct {
	Range   DateRange `json:"range"`
	Count   int       `json:"count"`
	Open    int       `json:"open"`
	Closed  int       `json:"closed"`
	Revenue float64   `json:"revenue"`
	Entries []*Entry  `json:"entries"`
}
