package app

import (
	"context"
	"strconv"

	"github.com/cimillas/ticket-ledger/internal/domain"
)

// RegistryRepository is the storage surface the ticket registry needs. A
// transaction opened by WithTx is carried in the context; nested WithTx
// calls join it, so registry writes made on behalf of another component
// commit or roll back with that component's transition. Notify buffers a
// notification inside the current transaction; the store delivers it only
// after the outermost commit.
type RegistryRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	NextTicketID(ctx context.Context) (int64, error)
	CreateTicket(ctx context.Context, ticket domain.Ticket) error
	GetTicket(ctx context.Context, id int64) (domain.Ticket, error)
	GetTicketForUpdate(ctx context.Context, id int64) (domain.Ticket, error)
	UpdateTicket(ctx context.Context, ticket domain.Ticket) error
	IsIssuer(ctx context.Context, account domain.Account) (bool, error)
	SetIssuer(ctx context.Context, account domain.Account, member bool) error
	BaseURI(ctx context.Context) (string, error)
	SetBaseURI(ctx context.Context, uri string) error
	RegistryBalance(ctx context.Context) (int64, error)
	SetRegistryBalance(ctx context.Context, balance int64) error
	Notify(ctx context.Context, topic string, payload any) error
}

// TicketRegistry is the sole source of truth for ticket existence,
// ownership and usage. Minting and marking used are gated to the issuer
// allow-list; the allow-list itself and the base URI are owner-gated.
type TicketRegistry struct {
	owner domain.Account
	repo  RegistryRepository
}

func NewTicketRegistry(owner domain.Account, repo RegistryRepository) *TicketRegistry {
	return &TicketRegistry{owner: owner, repo: repo}
}

// Owner returns the registry's administrative account.
func (r *TicketRegistry) Owner() domain.Account {
	return r.owner
}

type MintInput struct {
	Recipient   domain.Account
	MetadataURI string
	EventID     int64
}

// Mint assigns the next sequential ticket id to a fresh unused ticket. The
// caller must be an enrolled issuer; the registry performs no capacity
// check of its own.
func (r *TicketRegistry) Mint(ctx context.Context, caller domain.Account, in MintInput) (domain.Ticket, error) {
	var result domain.Ticket

	err := r.repo.WithTx(ctx, func(txCtx context.Context) error {
		issuer, err := r.repo.IsIssuer(txCtx, caller)
		if err != nil {
			return err
		}
		if !issuer {
			return domain.ErrUnauthorized
		}

		id, err := r.repo.NextTicketID(txCtx)
		if err != nil {
			return err
		}

		ticket := domain.Ticket{
			ID:          id,
			Owner:       in.Recipient,
			EventID:     in.EventID,
			Used:        false,
			MetadataURI: in.MetadataURI,
		}
		if err := r.repo.CreateTicket(txCtx, ticket); err != nil {
			return err
		}
		if err := r.repo.Notify(txCtx, domain.TopicTicketTransferred, domain.TicketTransferred{
			From:     domain.NoAccount,
			To:       in.Recipient,
			TicketID: id,
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

// MarkUsed flips the usage flag exactly once. Issuer-gated; the registry
// does not care which event the caller is validating on behalf of.
func (r *TicketRegistry) MarkUsed(ctx context.Context, caller domain.Account, ticketID int64) (domain.Ticket, error) {
	var result domain.Ticket

	err := r.repo.WithTx(ctx, func(txCtx context.Context) error {
		issuer, err := r.repo.IsIssuer(txCtx, caller)
		if err != nil {
			return err
		}
		if !issuer {
			return domain.ErrUnauthorized
		}

		ticket, err := r.repo.GetTicketForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Used {
			return domain.ErrTicketAlreadyUsed
		}

		ticket.Used = true
		if err := r.repo.UpdateTicket(txCtx, ticket); err != nil {
			return err
		}
		if err := r.repo.Notify(txCtx, domain.TopicTicketUsed, domain.TicketUsed{TicketID: ticketID}); err != nil {
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

// Transfer reassigns ownership. The caller must be the current owner or the
// account approved for this ticket. Used tickets transfer like any other.
func (r *TicketRegistry) Transfer(ctx context.Context, caller, from, to domain.Account, ticketID int64) error {
	return r.repo.WithTx(ctx, func(txCtx context.Context) error {
		ticket, err := r.repo.GetTicketForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Owner != from {
			return domain.ErrNotTicketOwner
		}
		if caller != from && caller != ticket.Approved {
			return domain.ErrTransferNotApproved
		}

		ticket.Owner = to
		ticket.Approved = domain.NoAccount
		if err := r.repo.UpdateTicket(txCtx, ticket); err != nil {
			return err
		}
		return r.repo.Notify(txCtx, domain.TopicTicketTransferred, domain.TicketTransferred{
			From:     from,
			To:       to,
			TicketID: ticketID,
		})
	})
}

// Approve lets the owner name one account that may transfer the ticket on
// their behalf. Overwritten by later approvals, cleared on transfer.
func (r *TicketRegistry) Approve(ctx context.Context, caller, to domain.Account, ticketID int64) error {
	return r.repo.WithTx(ctx, func(txCtx context.Context) error {
		ticket, err := r.repo.GetTicketForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Owner != caller {
			return domain.ErrNotTicketOwner
		}

		ticket.Approved = to
		return r.repo.UpdateTicket(txCtx, ticket)
	})
}

// SetBaseURI replaces the registry-wide metadata base. Owner-gated.
func (r *TicketRegistry) SetBaseURI(ctx context.Context, caller domain.Account, uri string) error {
	if caller != r.owner {
		return domain.ErrUnauthorized
	}
	return r.repo.WithTx(ctx, func(txCtx context.Context) error {
		return r.repo.SetBaseURI(txCtx, uri)
	})
}

// AddIssuer enrolls an account on the issuer allow-list. Owner-gated.
func (r *TicketRegistry) AddIssuer(ctx context.Context, caller, account domain.Account) error {
	if caller != r.owner {
		return domain.ErrUnauthorized
	}
	return r.repo.WithTx(ctx, func(txCtx context.Context) error {
		return r.repo.SetIssuer(txCtx, account, true)
	})
}

// RemoveIssuer drops an account from the issuer allow-list. Owner-gated.
func (r *TicketRegistry) RemoveIssuer(ctx context.Context, caller, account domain.Account) error {
	if caller != r.owner {
		return domain.ErrUnauthorized
	}
	return r.repo.WithTx(ctx, func(txCtx context.Context) error {
		return r.repo.SetIssuer(txCtx, account, false)
	})
}

// Deposit credits funds held directly by the registry, distinct from event
// proceeds custodied by the ledger.
func (r *TicketRegistry) Deposit(ctx context.Context, from domain.Account, amount int64) error {
	if amount < 0 {
		return domain.ErrInsufficientPayment
	}
	return r.repo.WithTx(ctx, func(txCtx context.Context) error {
		balance, err := r.repo.RegistryBalance(txCtx)
		if err != nil {
			return err
		}
		return r.repo.SetRegistryBalance(txCtx, balance+amount)
	})
}

// Withdraw sweeps the registry's direct balance to the owner and returns
// the amount paid out. Owner-gated.
func (r *TicketRegistry) Withdraw(ctx context.Context, caller domain.Account) (int64, error) {
	if caller != r.owner {
		return 0, domain.ErrUnauthorized
	}

	var amount int64
	err := r.repo.WithTx(ctx, func(txCtx context.Context) error {
		balance, err := r.repo.RegistryBalance(txCtx)
		if err != nil {
			return err
		}
		amount = balance
		return r.repo.SetRegistryBalance(txCtx, 0)
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// Ticket looks up a ticket by id.
func (r *TicketRegistry) Ticket(ctx context.Context, ticketID int64) (domain.Ticket, error) {
	return r.repo.GetTicket(ctx, ticketID)
}

// TicketURI resolves a ticket's metadata reference: the explicit per-ticket
// URI wins when non-empty, otherwise the registry-wide base plus the ticket
// id, otherwise empty.
func (r *TicketRegistry) TicketURI(ctx context.Context, ticketID int64) (string, error) {
	ticket, err := r.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if ticket.MetadataURI != "" {
		return ticket.MetadataURI, nil
	}

	base, err := r.repo.BaseURI(ctx)
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", nil
	}
	return base + strconv.FormatInt(ticketID, 10), nil
}

// IsIssuer reports issuer allow-list membership.
func (r *TicketRegistry) IsIssuer(ctx context.Context, account domain.Account) (bool, error) {
	return r.repo.IsIssuer(ctx, account)
}
