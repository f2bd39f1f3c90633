package models

import (
	"fmt"
	"time"
)

// Entry is a single vehicle visit. It is open until ExitDateTime is set.
type Entry struct {
	ID            int64      `json:"id"`
	ParkingCode   string     `json:"parkingCode"`
	PlateNumber   string     `json:"plateNumber"`
	EntryDateTime time.Time  `json:"entryDateTime"`
	ExitDateTime  *time.Time `json:"exitDateTime"`
	ChargedAmount *float64   `json:"chargedAmount"`
	RegisteredBy  string     `json:"registeredBy,omitempty"`
	ClosedBy      string     `json:"closedBy,omitempty"`
	Version       int64      `json:"version"`
}

func (e *Entry) IsOpen() bool {
	return e.ExitDateTime == nil
}

func (e *Entry) Status() string {
	if e.IsOpen() {
		return EntryStatusOpen
	}
	return EntryStatusClosed
}

// Ticket is handed to the driver when the vehicle enters.
type Ticket struct {
	EntryID       int64     `json:"-"`
	TicketID      string    `json:"ticketId"`
	PlateNumber   string    `json:"plateNumber"`
	ParkingCode   string    `json:"parkingCode"`
	ParkingName   string    `json:"parkingName"`
	EntryDateTime time.Time `json:"entryDateTime"`
	HourlyFee     float64   `json:"hourlyFee"`
}

// Bill is handed to the driver when the vehicle leaves.
type Bill struct {
	BillID        string    `json:"billId"`
	EntryID       int64     `json:"entryId"`
	PlateNumber   string    `json:"plateNumber"`
	ParkingCode   string    `json:"parkingCode"`
	ParkingName   string    `json:"parkingName"`
	EntryDateTime time.Time `json:"entryDateTime"`
	ExitDateTime  time.Time `json:"exitDateTime"`
	DurationHours int64     `json:"durationHours"`
	HourlyFee     float64   `json:"hourlyFee"`
	TotalAmount   float64   `json:"totalAmount"`
}

func TicketID(entryID int64) string {
	return fmt.Sprintf("TKT-%06d", entryID)
}

func BillID(entryID int64) string {
	return fmt.Sprintf("BILL-%06d", entryID)
}

// NewTicket projects an open entry and its parking into a ticket.
func NewTicket(e *Entry, p *Parking) Ticket {
	return Ticket{
		EntryID:       e.ID,
		TicketID:      TicketID(e.ID),
		PlateNumber:   e.PlateNumber,
		ParkingCode:   p.Code,
		ParkingName:   p.Name,
		EntryDateTime: e.EntryDateTime,
		HourlyFee:     p.HourlyFee,
	}
}
