package domain

// Topic name constants for every notification the ledger emits. Consumers
// (the presentation layer, off-process indexers) subscribe by topic.
const (
	TopicEventCreated      = "event.created"
	TopicTicketPurchased   = "ticket.purchased"
	TopicTicketValidated   = "ticket.validated"
	TopicTicketTransferred = "ticket.transferred"
	TopicTicketUsed        = "ticket.used"
)

// EventCreated is published when a new event is created.
type EventCreated struct {
	EventID   int64   `json:"event_id"`
	Name      string  `json:"name"`
	Organizer Account `json:"organizer"`
}

// TicketPurchased is published when a sale completes.
type TicketPurchased struct {
	EventID  int64   `json:"event_id"`
	TicketID int64   `json:"ticket_id"`
	Buyer    Account `json:"buyer"`
}

// TicketValidated is published when a validator marks a ticket used.
type TicketValidated struct {
	TicketID int64 `json:"ticket_id"`
	EventID  int64 `json:"event_id"`
}

// TicketTransferred is published on every ownership change, minting
// included (From is NoAccount then).
type TicketTransferred struct {
	From     Account `json:"from"`
	To       Account `json:"to"`
	TicketID int64   `json:"ticket_id"`
}

// TicketUsed is published by the registry when a ticket's usage flag flips.
type TicketUsed struct {
	TicketID int64 `json:"ticket_id"`
}
