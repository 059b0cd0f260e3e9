package app

import (
	"context"
	"errors"
	"testing"

	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/cimillas/ticket-ledger/internal/notify"
	"github.com/cimillas/ticket-ledger/internal/storage/memory"
)

const (
	boxOffice = domain.Account("box-office")
	holderA   = domain.Account("holder-a")
	holderB   = domain.Account("holder-b")
	broker    = domain.Account("broker")
)

func newRegistry(t *testing.T) (*TicketRegistry, *notify.Recorder) {
	t.Helper()
	notes := notify.NewRecorder()
	store := memory.NewStore(notes)
	registry := NewTicketRegistry(registryOwner, store)
	if err := registry.AddIssuer(context.Background(), registryOwner, boxOffice); err != nil {
		t.Fatalf("enroll issuer: %v", err)
	}
	return registry, notes
}

func mintTicket(t *testing.T, registry *TicketRegistry, owner domain.Account) domain.Ticket {
	t.Helper()
	ticket, err := registry.Mint(context.Background(), boxOffice, MintInput{Recipient: owner, EventID: 1})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return ticket
}

func TestTicketRegistry_Mint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("issuer mints sequential tickets", func(t *testing.T) {
		registry, notes := newRegistry(t)

		first := mintTicket(t, registry, holderA)
		second := mintTicket(t, registry, holderB)

		if first.ID != 1 || second.ID != 2 {
			t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
		}
		if first.Owner != holderA || second.Owner != holderB {
			t.Fatalf("unexpected owners: %s, %s", first.Owner, second.Owner)
		}
		if first.Used || second.Used {
			t.Fatalf("expected fresh tickets to be unused")
		}

		transfers := notes.ByTopic(domain.TopicTicketTransferred)
		if len(transfers) != 2 {
			t.Fatalf("expected 2 transfer notifications, got %d", len(transfers))
		}
		payload := transfers[0].Payload.(domain.TicketTransferred)
		if payload.From != domain.NoAccount || payload.To != holderA {
			t.Fatalf("expected mint notification from the zero account, got %+v", payload)
		}
	})

	t.Run("non-issuer cannot mint", func(t *testing.T) {
		registry, _ := newRegistry(t)

		_, err := registry.Mint(ctx, holderA, MintInput{Recipient: holderA, EventID: 1})
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := registry.Ticket(ctx, 1); !errors.Is(err, domain.ErrTicketNotFound) {
			t.Fatalf("expected no ticket, got %v", err)
		}
	})

	t.Run("revoked issuer cannot mint", func(t *testing.T) {
		registry, _ := newRegistry(t)
		if err := registry.RemoveIssuer(ctx, registryOwner, boxOffice); err != nil {
			t.Fatalf("revoke: %v", err)
		}

		_, err := registry.Mint(ctx, boxOffice, MintInput{Recipient: holderA, EventID: 1})
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestTicketRegistry_MarkUsed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("flips the flag exactly once", func(t *testing.T) {
		registry, notes := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		used, err := registry.MarkUsed(ctx, boxOffice, ticket.ID)
		if err != nil {
			t.Fatalf("mark used: %v", err)
		}
		if !used.Used {
			t.Fatalf("expected ticket to be used")
		}

		if _, err := registry.MarkUsed(ctx, boxOffice, ticket.ID); !errors.Is(err, domain.ErrTicketAlreadyUsed) {
			t.Fatalf("expected ErrTicketAlreadyUsed, got %v", err)
		}

		got, err := registry.Ticket(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if !got.Used {
			t.Fatalf("expected used to stay true")
		}

		if len(notes.ByTopic(domain.TopicTicketUsed)) != 1 {
			t.Fatalf("expected exactly 1 TicketUsed notification")
		}
	})

	t.Run("non-issuer cannot mark used", func(t *testing.T) {
		registry, _ := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		if _, err := registry.MarkUsed(ctx, holderA, ticket.ID); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown ticket", func(t *testing.T) {
		registry, _ := newRegistry(t)
		if _, err := registry.MarkUsed(ctx, boxOffice, 17); !errors.Is(err, domain.ErrTicketNotFound) {
			t.Fatalf("expected ErrTicketNotFound, got %v", err)
		}
	})
}

func TestTicketRegistry_Transfer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("owner transfers", func(t *testing.T) {
		registry, notes := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		if err := registry.Transfer(ctx, holderA, holderA, holderB, ticket.ID); err != nil {
			t.Fatalf("transfer: %v", err)
		}

		got, err := registry.Ticket(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if got.Owner != holderB {
			t.Fatalf("expected owner %s, got %s", holderB, got.Owner)
		}

		transfers := notes.ByTopic(domain.TopicTicketTransferred)
		last := transfers[len(transfers)-1].Payload.(domain.TicketTransferred)
		if last.From != holderA || last.To != holderB || last.TicketID != ticket.ID {
			t.Fatalf("unexpected transfer notification: %+v", last)
		}
	})

	t.Run("from must match the current owner", func(t *testing.T) {
		registry, _ := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		err := registry.Transfer(ctx, holderB, holderB, broker, ticket.ID)
		if !errors.Is(err, domain.ErrNotTicketOwner) {
			t.Fatalf("expected ErrNotTicketOwner, got %v", err)
		}
	})

	t.Run("stranger cannot move someone else's ticket", func(t *testing.T) {
		registry, _ := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		err := registry.Transfer(ctx, broker, holderA, holderB, ticket.ID)
		if !errors.Is(err, domain.ErrTransferNotApproved) {
			t.Fatalf("expected ErrTransferNotApproved, got %v", err)
		}
	})

	t.Run("approved account transfers once", func(t *testing.T) {
		registry, _ := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		if err := registry.Approve(ctx, holderA, broker, ticket.ID); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if err := registry.Transfer(ctx, broker, holderA, holderB, ticket.ID); err != nil {
			t.Fatalf("approved transfer: %v", err)
		}

		got, _ := registry.Ticket(ctx, ticket.ID)
		if got.Owner != holderB {
			t.Fatalf("expected owner %s, got %s", holderB, got.Owner)
		}
		if got.Approved != domain.NoAccount {
			t.Fatalf("expected approval cleared, got %s", got.Approved)
		}

		// The approval does not survive the transfer.
		err := registry.Transfer(ctx, broker, holderB, holderA, ticket.ID)
		if !errors.Is(err, domain.ErrTransferNotApproved) {
			t.Fatalf("expected ErrTransferNotApproved, got %v", err)
		}
	})

	t.Run("only the owner approves", func(t *testing.T) {
		registry, _ := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		if err := registry.Approve(ctx, holderB, broker, ticket.ID); !errors.Is(err, domain.ErrNotTicketOwner) {
			t.Fatalf("expected ErrNotTicketOwner, got %v", err)
		}
	})

	t.Run("used tickets still transfer", func(t *testing.T) {
		registry, _ := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		if _, err := registry.MarkUsed(ctx, boxOffice, ticket.ID); err != nil {
			t.Fatalf("mark used: %v", err)
		}
		if err := registry.Transfer(ctx, holderA, holderA, holderB, ticket.ID); err != nil {
			t.Fatalf("transfer of used ticket: %v", err)
		}

		got, _ := registry.Ticket(ctx, ticket.ID)
		if got.Owner != holderB || !got.Used {
			t.Fatalf("expected used ticket owned by %s, got %+v", holderB, got)
		}
	})
}

func TestTicketRegistry_TicketURI(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("explicit URI wins", func(t *testing.T) {
		registry, _ := newRegistry(t)
		if err := registry.SetBaseURI(ctx, registryOwner, "ipfs://base/"); err != nil {
			t.Fatalf("set base uri: %v", err)
		}
		ticket, err := registry.Mint(ctx, boxOffice, MintInput{Recipient: holderA, MetadataURI: "ipfs://explicit/7", EventID: 1})
		if err != nil {
			t.Fatalf("mint: %v", err)
		}

		uri, err := registry.TicketURI(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("ticket uri: %v", err)
		}
		if uri != "ipfs://explicit/7" {
			t.Fatalf("expected explicit uri, got %q", uri)
		}
	})

	t.Run("falls back to base plus id", func(t *testing.T) {
		registry, _ := newRegistry(t)
		if err := registry.SetBaseURI(ctx, registryOwner, "ipfs://base/"); err != nil {
			t.Fatalf("set base uri: %v", err)
		}
		ticket := mintTicket(t, registry, holderA)

		uri, err := registry.TicketURI(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("ticket uri: %v", err)
		}
		if uri != "ipfs://base/1" {
			t.Fatalf("expected ipfs://base/1, got %q", uri)
		}
	})

	t.Run("empty when nothing is configured", func(t *testing.T) {
		registry, _ := newRegistry(t)
		ticket := mintTicket(t, registry, holderA)

		uri, err := registry.TicketURI(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("ticket uri: %v", err)
		}
		if uri != "" {
			t.Fatalf("expected empty uri, got %q", uri)
		}
	})

	t.Run("only the owner sets the base", func(t *testing.T) {
		registry, _ := newRegistry(t)
		if err := registry.SetBaseURI(ctx, holderA, "ipfs://sneaky/"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestTicketRegistry_Funds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("deposits accumulate and the owner sweeps them", func(t *testing.T) {
		registry, _ := newRegistry(t)

		if err := registry.Deposit(ctx, holderA, 300); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if err := registry.Deposit(ctx, holderB, 200); err != nil {
			t.Fatalf("deposit: %v", err)
		}

		amount, err := registry.Withdraw(ctx, registryOwner)
		if err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if amount != 500 {
			t.Fatalf("expected 500, got %d", amount)
		}

		amount, err = registry.Withdraw(ctx, registryOwner)
		if err != nil {
			t.Fatalf("second withdraw: %v", err)
		}
		if amount != 0 {
			t.Fatalf("expected empty balance, got %d", amount)
		}
	})

	t.Run("negative deposits rejected", func(t *testing.T) {
		registry, _ := newRegistry(t)
		if err := registry.Deposit(ctx, holderA, -1); !errors.Is(err, domain.ErrInsufficientPayment) {
			t.Fatalf("expected ErrInsufficientPayment, got %v", err)
		}
	})

	t.Run("only the owner withdraws", func(t *testing.T) {
		registry, _ := newRegistry(t)
		if _, err := registry.Withdraw(ctx, holderA); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestTicketRegistry_IssuerList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("only the owner manages the issuer list", func(t *testing.T) {
		registry, _ := newRegistry(t)

		if err := registry.AddIssuer(ctx, holderA, broker); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if err := registry.RemoveIssuer(ctx, holderA, boxOffice); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("membership is visible", func(t *testing.T) {
		registry, _ := newRegistry(t)

		member, err := registry.IsIssuer(ctx, boxOffice)
		if err != nil {
			t.Fatalf("is issuer: %v", err)
		}
		if !member {
			t.Fatalf("expected %s to be an issuer", boxOffice)
		}

		member, err = registry.IsIssuer(ctx, holderA)
		if err != nil {
			t.Fatalf("is issuer: %v", err)
		}
		if member {
			t.Fatalf("expected %s not to be an issuer", holderA)
		}
	})
}
