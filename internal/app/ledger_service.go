package app

import (
	"context"
	"time"

	"github.com/cimillas/ticket-ledger/internal/clock"
	"github.com/cimillas/ticket-ledger/internal/domain"
)

// LedgerRepository is the storage surface the event ledger needs. Same
// transaction semantics as RegistryRepository: WithTx joins a transaction
// already carried in the context, and Notify defers delivery to commit.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	NextEventID(ctx context.Context) (int64, error)
	CreateEvent(ctx context.Context, event domain.Event) error
	GetEvent(ctx context.Context, id int64) (domain.Event, error)
	GetEventForUpdate(ctx context.Context, id int64) (domain.Event, error)
	UpdateEvent(ctx context.Context, event domain.Event) error
	IsValidator(ctx context.Context, account domain.Account) (bool, error)
	SetValidator(ctx context.Context, account domain.Account, member bool) error
	Notify(ctx context.Context, topic string, payload any) error
}

// TicketIssuer is the capability the ledger holds on the registry: exactly
// mint and mark-used, called under the ledger's own issuer identity.
type TicketIssuer interface {
	Mint(ctx context.Context, caller domain.Account, in MintInput) (domain.Ticket, error)
	MarkUsed(ctx context.Context, caller domain.Account, ticketID int64) (domain.Ticket, error)
}

// EventLedger owns the event lifecycle, sale execution with payment custody
// and validation authorization. It mints through the registry under its own
// account, which must be enrolled as an issuer there.
type EventLedger struct {
	owner   domain.Account
	account domain.Account
	repo    LedgerRepository
	tickets TicketIssuer
	clock   clock.Clock
}

func NewEventLedger(owner, account domain.Account, repo LedgerRepository, tickets TicketIssuer, clk clock.Clock) *EventLedger {
	return &EventLedger{
		owner:   owner,
		account: account,
		repo:    repo,
		tickets: tickets,
		clock:   clk,
	}
}

// Owner returns the ledger's administrative account.
func (s *EventLedger) Owner() domain.Account {
	return s.owner
}

// Account returns the identity the ledger uses on the registry.
func (s *EventLedger) Account() domain.Account {
	return s.account
}

type CreateEventInput struct {
	Name         string
	Date         time.Time
	Price        int64
	MaxTickets   int
	MetadataBase string
}

// CreateEvent records a new event with the caller as organizer. Open to any
// caller; anyone may become an organizer.
func (s *EventLedger) CreateEvent(ctx context.Context, caller domain.Account, in CreateEventInput) (domain.Event, error) {
	if !in.Date.After(s.clock.Now()) {
		return domain.Event{}, domain.ErrInvalidDate
	}
	if in.MaxTickets <= 0 {
		return domain.Event{}, domain.ErrInvalidCapacity
	}
	if in.Price < 0 {
		return domain.Event{}, domain.ErrInvalidPrice
	}

	var result domain.Event
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		id, err := s.repo.NextEventID(txCtx)
		if err != nil {
			return err
		}

		event := domain.Event{
			ID:           id,
			Name:         in.Name,
			Date:         in.Date,
			Price:        in.Price,
			MaxTickets:   in.MaxTickets,
			SoldTickets:  0,
			Active:       true,
			Organizer:    caller,
			MetadataBase: in.MetadataBase,
		}
		if err := s.repo.CreateEvent(txCtx, event); err != nil {
			return err
		}
		if err := s.repo.Notify(txCtx, domain.TopicEventCreated, domain.EventCreated{
			EventID:   id,
			Name:      in.Name,
			Organizer: caller,
		}); err != nil {
			return err
		}

		result = event
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result, nil
}

type PurchaseResult struct {
	Ticket domain.Ticket
	// Refund is returned to the buyer in the same transition: exactly
	// payment minus price, no fee, no rounding.
	Refund int64
}

// PurchaseTicket sells one ticket: increments the sold counter, custodies
// the price with the event, mints through the registry and refunds any
// excess payment. All of it commits or none of it does; a mint rejected by
// the registry unwinds the counter and the custody.
func (s *EventLedger) PurchaseTicket(ctx context.Context, caller domain.Account, eventID int64, payment int64) (PurchaseResult, error) {
	var result PurchaseResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEventForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		if !event.Active {
			return domain.ErrEventInactive
		}
		if !s.clock.Now().Before(event.Date) {
			return domain.ErrEventElapsed
		}
		if event.SoldTickets >= event.MaxTickets {
			return domain.ErrSoldOut
		}
		if payment < event.Price {
			return domain.ErrInsufficientPayment
		}

		event.SoldTickets++
		event.Balance += event.Price
		if err := s.repo.UpdateEvent(txCtx, event); err != nil {
			return err
		}

		ticket, err := s.tickets.Mint(txCtx, s.account, MintInput{
			Recipient:   caller,
			MetadataURI: event.MetadataBase,
			EventID:     eventID,
		})
		if err != nil {
			return err
		}

		if err := s.repo.Notify(txCtx, domain.TopicTicketPurchased, domain.TicketPurchased{
			EventID:  eventID,
			TicketID: ticket.ID,
			Buyer:    caller,
		}); err != nil {
			return err
		}

		result = PurchaseResult{Ticket: ticket, Refund: payment - event.Price}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	return result, nil
}

// ValidateTicket marks a ticket used on behalf of an enrolled validator.
// The registry's per-ticket state is authoritative; AlreadyUsed propagates
// unchanged.
func (s *EventLedger) ValidateTicket(ctx context.Context, caller domain.Account, ticketID int64) (domain.Ticket, error) {
	var result domain.Ticket

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		validator, err := s.repo.IsValidator(txCtx, caller)
		if err != nil {
			return err
		}
		if !validator {
			return domain.ErrUnauthorized
		}

		ticket, err := s.tickets.MarkUsed(txCtx, s.account, ticketID)
		if err != nil {
			return err
		}

		if err := s.repo.Notify(txCtx, domain.TopicTicketValidated, domain.TicketValidated{
			TicketID: ticketID,
			EventID:  ticket.EventID,
		}); err != nil {
			return err
		}

		result = ticket
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return result, nil
}

// SetEventActive toggles purchasability. Organizer-gated; setting the
// current value is a no-op success.
func (s *EventLedger) SetEventActive(ctx context.Context, caller domain.Account, eventID int64, active bool) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEventForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		if event.Organizer != caller {
			return domain.ErrUnauthorized
		}

		event.Active = active
		return s.repo.UpdateEvent(txCtx, event)
	})
}

// WithdrawEventProceeds sweeps the event's custodied balance to the
// organizer and returns the amount paid out. The sold counter resets to
// zero afterwards, which reopens capacity under the original maximum even
// though the sold tickets remain minted; kept for compatibility with the
// deployed behavior.
func (s *EventLedger) WithdrawEventProceeds(ctx context.Context, caller domain.Account, eventID int64) (int64, error) {
	var amount int64

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEventForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}
		if event.Organizer != caller {
			return domain.ErrUnauthorized
		}

		amount = event.Balance
		event.Balance = 0
		event.SoldTickets = 0
		return s.repo.UpdateEvent(txCtx, event)
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// AddValidator enrolls an account on the validator allow-list. Owner-gated.
func (s *EventLedger) AddValidator(ctx context.Context, caller, account domain.Account) error {
	if caller != s.owner {
		return domain.ErrUnauthorized
	}
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.SetValidator(txCtx, account, true)
	})
}

// RemoveValidator drops an account from the validator allow-list. Owner-gated.
func (s *EventLedger) RemoveValidator(ctx context.Context, caller, account domain.Account) error {
	if caller != s.owner {
		return domain.ErrUnauthorized
	}
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.SetValidator(txCtx, account, false)
	})
}

// Event looks up an event by id.
func (s *EventLedger) Event(ctx context.Context, eventID int64) (domain.Event, error) {
	return s.repo.GetEvent(ctx, eventID)
}

// IsValidator reports validator allow-list membership.
func (s *EventLedger) IsValidator(ctx context.Context, account domain.Account) (bool, error) {
	return s.repo.IsValidator(ctx, account)
}
