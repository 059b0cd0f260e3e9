package postgres

import (
	"context"

	"github.com/cimillas/ticket-ledger/internal/notify"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type note struct {
	topic   string
	payload any
}

type txData struct {
	tx    pgx.Tx
	notes []note
}

type txKey struct{}

// withTx joins the transaction carried in the context or starts a new one.
// Notifications buffered during the transaction are published only after a
// successful commit.
func withTx(ctx context.Context, pool *pgxpool.Pool, pub notify.Publisher, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	data := &txData{tx: tx}
	txCtx := context.WithValue(ctx, txKey{}, data)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	for _, n := range data.notes {
		_ = pub.Publish(n.topic, n.payload)
	}
	return nil
}

func txFromContext(ctx context.Context) *txData {
	data, _ := ctx.Value(txKey{}).(*txData)
	return data
}

func bufferNote(ctx context.Context, pub notify.Publisher, topic string, payload any) error {
	if data := txFromContext(ctx); data != nil {
		data.notes = append(data.notes, note{topic: topic, payload: payload})
		return nil
	}
	return pub.Publish(topic, payload)
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func querierFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if data := txFromContext(ctx); data != nil {
		return data.tx
	}
	return pool
}
