package postgres

import (
	"context"
	"fmt"

	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/cimillas/ticket-ledger/internal/notify"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository persists events, validator membership and event-scoped
// balances.
type LedgerRepository struct {
	pool *pgxpool.Pool
	pub  notify.Publisher
}

func NewLedgerRepository(pool *pgxpool.Pool, pub notify.Publisher) *LedgerRepository {
	if pub == nil {
		pub = notify.Discard{}
	}
	return &LedgerRepository{pool: pool, pub: pub}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, r.pub, fn)
}

func (r *LedgerRepository) Notify(ctx context.Context, topic string, payload any) error {
	return bufferNote(ctx, r.pub, topic, payload)
}

func (r *LedgerRepository) NextEventID(ctx context.Context) (int64, error) {
	const stmt = `UPDATE counters SET value = value + 1 WHERE name = 'event_id' RETURNING value`
	var id int64
	if err := querierFor(ctx, r.pool).QueryRow(ctx, stmt).Scan(&id); err != nil {
		return 0, fmt.Errorf("next event id: %w", err)
	}
	return id, nil
}

func (r *LedgerRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
INSERT INTO events (id, name, date, price, max_tickets, sold_tickets, active, organizer, metadata_base, balance)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := querierFor(ctx, r.pool).Exec(ctx, stmt,
		event.ID,
		event.Name,
		event.Date,
		event.Price,
		event.MaxTickets,
		event.SoldTickets,
		event.Active,
		string(event.Organizer),
		event.MetadataBase,
		event.Balance,
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	return r.getEvent(ctx, id, false)
}

func (r *LedgerRepository) GetEventForUpdate(ctx context.Context, id int64) (domain.Event, error) {
	return r.getEvent(ctx, id, true)
}

func (r *LedgerRepository) getEvent(ctx context.Context, id int64, forUpdate bool) (domain.Event, error) {
	query := `
SELECT id, name, date, price, max_tickets, sold_tickets, active, organizer, metadata_base, balance
FROM events
WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		e         domain.Event
		organizer string
	)
	err := querierFor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Name,
		&e.Date,
		&e.Price,
		&e.MaxTickets,
		&e.SoldTickets,
		&e.Active,
		&organizer,
		&e.MetadataBase,
		&e.Balance,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	e.Organizer = domain.Account(organizer)
	return e, nil
}

func (r *LedgerRepository) UpdateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
UPDATE events
SET sold_tickets = $2, active = $3, balance = $4
WHERE id = $1`

	tag, err := querierFor(ctx, r.pool).Exec(ctx, stmt,
		event.ID,
		event.SoldTickets,
		event.Active,
		event.Balance,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *LedgerRepository) IsValidator(ctx context.Context, account domain.Account) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM validators WHERE account = $1)`
	var member bool
	if err := querierFor(ctx, r.pool).QueryRow(ctx, query, string(account)).Scan(&member); err != nil {
		return false, fmt.Errorf("is validator: %w", err)
	}
	return member, nil
}

func (r *LedgerRepository) SetValidator(ctx context.Context, account domain.Account, member bool) error {
	q := querierFor(ctx, r.pool)
	if member {
		if _, err := q.Exec(ctx, `INSERT INTO validators (account) VALUES ($1) ON CONFLICT DO NOTHING`, string(account)); err != nil {
			return fmt.Errorf("add validator: %w", err)
		}
		return nil
	}
	if _, err := q.Exec(ctx, `DELETE FROM validators WHERE account = $1`, string(account)); err != nil {
		return fmt.Errorf("remove validator: %w", err)
	}
	return nil
}
