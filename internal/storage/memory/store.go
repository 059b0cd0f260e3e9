// Package memory holds the ledger state in process. One mutex serializes
// transitions; WithTx runs against a copy of the state and swaps it in only
// on success, so a failed transition leaves nothing behind.
package memory

import (
	"context"
	"sync"

	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/cimillas/ticket-ledger/internal/notify"
)

type state struct {
	events          map[int64]domain.Event
	tickets         map[int64]domain.Ticket
	issuers         map[domain.Account]bool
	validators      map[domain.Account]bool
	baseURI         string
	registryBalance int64
	eventSeq        int64
	ticketSeq       int64
}

func newState() state {
	return state{
		events:     make(map[int64]domain.Event),
		tickets:    make(map[int64]domain.Ticket),
		issuers:    make(map[domain.Account]bool),
		validators: make(map[domain.Account]bool),
	}
}

func (s state) clone() state {
	out := s
	out.events = make(map[int64]domain.Event, len(s.events))
	for id, e := range s.events {
		out.events[id] = e
	}
	out.tickets = make(map[int64]domain.Ticket, len(s.tickets))
	for id, t := range s.tickets {
		out.tickets[id] = t
	}
	out.issuers = make(map[domain.Account]bool, len(s.issuers))
	for a, ok := range s.issuers {
		out.issuers[a] = ok
	}
	out.validators = make(map[domain.Account]bool, len(s.validators))
	for a, ok := range s.validators {
		out.validators[a] = ok
	}
	return out
}

type note struct {
	topic   string
	payload any
}

type tx struct {
	view  state
	notes []note
}

type txKey struct{}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// Store implements both app.RegistryRepository and app.LedgerRepository
// over the same state, so a purchase spanning ledger and registry is a
// single transaction.
type Store struct {
	mu    sync.Mutex
	pub   notify.Publisher
	state state
}

func NewStore(pub notify.Publisher) *Store {
	if pub == nil {
		pub = notify.Discard{}
	}
	return &Store{pub: pub, state: newState()}
}

// WithTx joins a transaction already carried in the context; otherwise it
// starts one, running fn against a private copy of the state. Buffered
// notifications go out only after the copy is swapped in.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	t := &tx{view: s.state.clone()}
	txCtx := context.WithValue(ctx, txKey{}, t)

	if err := fn(txCtx); err != nil {
		s.mu.Unlock()
		return err
	}

	s.state = t.view
	notes := t.notes
	s.mu.Unlock()

	for _, n := range notes {
		_ = s.pub.Publish(n.topic, n.payload)
	}
	return nil
}

// view returns the state a call should read and write: the transaction's
// copy when one is open, the committed state under lock otherwise.
func (s *Store) view(ctx context.Context) (*state, func()) {
	if t := txFromContext(ctx); t != nil {
		return &t.view, func() {}
	}
	s.mu.Lock()
	return &s.state, s.mu.Unlock
}

func (s *Store) Notify(ctx context.Context, topic string, payload any) error {
	if t := txFromContext(ctx); t != nil {
		t.notes = append(t.notes, note{topic: topic, payload: payload})
		return nil
	}
	return s.pub.Publish(topic, payload)
}

func (s *Store) NextEventID(ctx context.Context) (int64, error) {
	v, done := s.view(ctx)
	defer done()
	v.eventSeq++
	return v.eventSeq, nil
}

func (s *Store) CreateEvent(ctx context.Context, event domain.Event) error {
	v, done := s.view(ctx)
	defer done()
	v.events[event.ID] = event
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	v, done := s.view(ctx)
	defer done()
	event, ok := v.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return event, nil
}

// GetEventForUpdate is GetEvent; the store-wide mutex already gives a
// transaction exclusive access.
func (s *Store) GetEventForUpdate(ctx context.Context, id int64) (domain.Event, error) {
	return s.GetEvent(ctx, id)
}

func (s *Store) UpdateEvent(ctx context.Context, event domain.Event) error {
	v, done := s.view(ctx)
	defer done()
	if _, ok := v.events[event.ID]; !ok {
		return domain.ErrEventNotFound
	}
	v.events[event.ID] = event
	return nil
}

func (s *Store) IsValidator(ctx context.Context, account domain.Account) (bool, error) {
	v, done := s.view(ctx)
	defer done()
	return v.validators[account], nil
}

func (s *Store) SetValidator(ctx context.Context, account domain.Account, member bool) error {
	v, done := s.view(ctx)
	defer done()
	if member {
		v.validators[account] = true
	} else {
		delete(v.validators, account)
	}
	return nil
}

func (s *Store) NextTicketID(ctx context.Context) (int64, error) {
	v, done := s.view(ctx)
	defer done()
	v.ticketSeq++
	return v.ticketSeq, nil
}

func (s *Store) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	v, done := s.view(ctx)
	defer done()
	v.tickets[ticket.ID] = ticket
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	v, done := s.view(ctx)
	defer done()
	ticket, ok := v.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Store) GetTicketForUpdate(ctx context.Context, id int64) (domain.Ticket, error) {
	return s.GetTicket(ctx, id)
}

func (s *Store) UpdateTicket(ctx context.Context, ticket domain.Ticket) error {
	v, done := s.view(ctx)
	defer done()
	if _, ok := v.tickets[ticket.ID]; !ok {
		return domain.ErrTicketNotFound
	}
	v.tickets[ticket.ID] = ticket
	return nil
}

func (s *Store) IsIssuer(ctx context.Context, account domain.Account) (bool, error) {
	v, done := s.view(ctx)
	defer done()
	return v.issuers[account], nil
}

func (s *Store) SetIssuer(ctx context.Context, account domain.Account, member bool) error {
	v, done := s.view(ctx)
	defer done()
	if member {
		v.issuers[account] = true
	} else {
		delete(v.issuers, account)
	}
	return nil
}

func (s *Store) BaseURI(ctx context.Context) (string, error) {
	v, done := s.view(ctx)
	defer done()
	return v.baseURI, nil
}

func (s *Store) SetBaseURI(ctx context.Context, uri string) error {
	v, done := s.view(ctx)
	defer done()
	v.baseURI = uri
	return nil
}

func (s *Store) RegistryBalance(ctx context.Context) (int64, error) {
	v, done := s.view(ctx)
	defer done()
	return v.registryBalance, nil
}

func (s *Store) SetRegistryBalance(ctx context.Context, balance int64) error {
	v, done := s.view(ctx)
	defer done()
	v.registryBalance = balance
	return nil
}
