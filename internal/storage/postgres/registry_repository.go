package postgres

import (
	"context"
	"fmt"

	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/cimillas/ticket-ledger/internal/notify"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistryRepository persists tickets, issuer membership and the
// registry-wide base URI and balance.
type RegistryRepository struct {
	pool *pgxpool.Pool
	pub  notify.Publisher
}

func NewRegistryRepository(pool *pgxpool.Pool, pub notify.Publisher) *RegistryRepository {
	if pub == nil {
		pub = notify.Discard{}
	}
	return &RegistryRepository{pool: pool, pub: pub}
}

func (r *RegistryRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, r.pub, fn)
}

func (r *RegistryRepository) Notify(ctx context.Context, topic string, payload any) error {
	return bufferNote(ctx, r.pub, topic, payload)
}

func (r *RegistryRepository) NextTicketID(ctx context.Context) (int64, error) {
	const stmt = `UPDATE counters SET value = value + 1 WHERE name = 'ticket_id' RETURNING value`
	var id int64
	if err := querierFor(ctx, r.pool).QueryRow(ctx, stmt).Scan(&id); err != nil {
		return 0, fmt.Errorf("next ticket id: %w", err)
	}
	return id, nil
}

func (r *RegistryRepository) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (id, owner_account, event_id, used, metadata_uri, approved_account)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querierFor(ctx, r.pool).Exec(ctx, stmt,
		ticket.ID,
		string(ticket.Owner),
		ticket.EventID,
		ticket.Used,
		ticket.MetadataURI,
		string(ticket.Approved),
	)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *RegistryRepository) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return r.getTicket(ctx, id, false)
}

func (r *RegistryRepository) GetTicketForUpdate(ctx context.Context, id int64) (domain.Ticket, error) {
	return r.getTicket(ctx, id, true)
}

func (r *RegistryRepository) getTicket(ctx context.Context, id int64, forUpdate bool) (domain.Ticket, error) {
	query := `
SELECT id, owner_account, event_id, used, metadata_uri, approved_account
FROM tickets
WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		t               domain.Ticket
		owner, approved string
	)
	err := querierFor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&t.ID,
		&owner,
		&t.EventID,
		&t.Used,
		&t.MetadataURI,
		&approved,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Ticket{}, domain.ErrTicketNotFound
		}
		return domain.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	t.Owner = domain.Account(owner)
	t.Approved = domain.Account(approved)
	return t, nil
}

func (r *RegistryRepository) UpdateTicket(ctx context.Context, ticket domain.Ticket) error {
	const stmt = `
UPDATE tickets
SET owner_account = $2, used = $3, approved_account = $4
WHERE id = $1`

	tag, err := querierFor(ctx, r.pool).Exec(ctx, stmt,
		ticket.ID,
		string(ticket.Owner),
		ticket.Used,
		string(ticket.Approved),
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *RegistryRepository) IsIssuer(ctx context.Context, account domain.Account) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM issuers WHERE account = $1)`
	var member bool
	if err := querierFor(ctx, r.pool).QueryRow(ctx, query, string(account)).Scan(&member); err != nil {
		return false, fmt.Errorf("is issuer: %w", err)
	}
	return member, nil
}

func (r *RegistryRepository) SetIssuer(ctx context.Context, account domain.Account, member bool) error {
	q := querierFor(ctx, r.pool)
	if member {
		if _, err := q.Exec(ctx, `INSERT INTO issuers (account) VALUES ($1) ON CONFLICT DO NOTHING`, string(account)); err != nil {
			return fmt.Errorf("add issuer: %w", err)
		}
		return nil
	}
	if _, err := q.Exec(ctx, `DELETE FROM issuers WHERE account = $1`, string(account)); err != nil {
		return fmt.Errorf("remove issuer: %w", err)
	}
	return nil
}

func (r *RegistryRepository) BaseURI(ctx context.Context) (string, error) {
	const query = `SELECT base_uri FROM registry_state WHERE id = 1`
	var uri string
	if err := querierFor(ctx, r.pool).QueryRow(ctx, query).Scan(&uri); err != nil {
		return "", fmt.Errorf("base uri: %w", err)
	}
	return uri, nil
}

func (r *RegistryRepository) SetBaseURI(ctx context.Context, uri string) error {
	if _, err := querierFor(ctx, r.pool).Exec(ctx, `UPDATE registry_state SET base_uri = $1 WHERE id = 1`, uri); err != nil {
		return fmt.Errorf("set base uri: %w", err)
	}
	return nil
}

func (r *RegistryRepository) RegistryBalance(ctx context.Context) (int64, error) {
	const query = `SELECT balance FROM registry_state WHERE id = 1`
	var balance int64
	if err := querierFor(ctx, r.pool).QueryRow(ctx, query).Scan(&balance); err != nil {
		return 0, fmt.Errorf("registry balance: %w", err)
	}
	return balance, nil
}

func (r *RegistryRepository) SetRegistryBalance(ctx context.Context, balance int64) error {
	if _, err := querierFor(ctx, r.pool).Exec(ctx, `UPDATE registry_state SET balance = $1 WHERE id = 1`, balance); err != nil {
		return fmt.Errorf("set registry balance: %w", err)
	}
	return nil
}
