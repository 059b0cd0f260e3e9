package domain

import "time"

// Event is a ticketed event. Only SoldTickets, Active and Balance change
// after creation.
type Event struct {
	ID           int64
	Name         string
	Date         time.Time
	Price        int64
	MaxTickets   int
	SoldTickets  int
	Active       bool
	Organizer    Account
	MetadataBase string
	// Balance is the custodied proceeds for this event, accumulated on each
	// purchase and swept by WithdrawEventProceeds.
	Balance int64
}
