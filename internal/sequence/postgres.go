package sequence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres increments counters stored in document_sequences. When built over
// a pgx.Tx the increment commits or rolls back with the caller's write, so no
// number is consumed by a failed business operation.
type Postgres struct {
	db Querier
}

// NewPostgres returns a Postgres sequencer over db.
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

const nextSequenceSQL = `INSERT INTO document_sequences (document_type, last_number, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (document_type) DO UPDATE
SET last_number = document_sequences.last_number + 1, updated_at = NOW()
RETURNING last_number`

// Next implements Sequencer.
func (p *Postgres) Next(ctx context.Context, t DocumentType) (int64, error) {
	if err := checkType(t); err != nil {
		return 0, err
	}
	var n int64
	if err := p.db.QueryRow(ctx, nextSequenceSQL, string(t)).Scan(&n); err != nil {
		return 0, unavailable(t, err)
	}
	return n, nil
}

// Peek implements Sequencer.
func (p *Postgres) Peek(ctx context.Context, t DocumentType) (int64, error) {
	if err := checkType(t); err != nil {
		return 0, err
	}
	var n int64
	err := p.db.QueryRow(ctx, `SELECT last_number FROM document_sequences WHERE document_type = $1`, string(t)).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, unavailable(t, err)
	}
	return n, nil
}
