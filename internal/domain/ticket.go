package domain

// Ticket is a uniquely owned entry ticket. IDs are sequential across the
// whole registry, not per event. Used is monotonic: once true, never reset.
type Ticket struct {
	ID          int64
	Owner       Account
	EventID     int64
	Used        bool
	MetadataURI string
	// Approved may transfer the ticket on the owner's behalf. Cleared on
	// every transfer.
	Approved Account
}
