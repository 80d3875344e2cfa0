package sequence

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const concurrentCallers = 1000

// requireDenseUnique issues n concurrent Next calls and checks the results
// are exactly 1..n.
func requireDenseUnique(t *testing.T, seq Sequencer, typ DocumentType, n int) {
	t.Helper()
	ctx := context.Background()
	results := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = seq.Next(ctx, typ)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, v := range results {
		require.Equal(t, int64(i+1), v, "duplicate or skipped number at position %d", i)
	}
	last, err := seq.Peek(ctx, typ)
	require.NoError(t, err)
	require.Equal(t, int64(n), last)
}

func TestMemoryConcurrentNext(t *testing.T) {
	requireDenseUnique(t, NewMemory(), Invoice, concurrentCallers)
}

func TestMemoryFirstUseStartsAtOne(t *testing.T) {
	seq := NewMemory()
	ctx := context.Background()

	peek, err := seq.Peek(ctx, Debt)
	require.NoError(t, err)
	require.Zero(t, peek)

	n, err := seq.Next(ctx, Debt)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = seq.Next(ctx, Payment)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "series are independent")
}

func TestUnknownDocumentType(t *testing.T) {
	_, err := NewMemory().Next(context.Background(), DocumentType("quote"))
	require.ErrorIs(t, err, ErrUnknownDocumentType)

	_, err = ParseDocumentType("quote")
	require.ErrorIs(t, err, ErrUnknownDocumentType)

	typ, err := ParseDocumentType("receipt")
	require.NoError(t, err)
	require.Equal(t, Receipt, typ)
}

func TestMemoryCancelledContextFailsOutright(t *testing.T) {
	seq := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := seq.Next(ctx, Invoice)
	require.ErrorIs(t, err, ErrUnavailable)

	last, err := seq.Peek(context.Background(), Invoice)
	require.NoError(t, err)
	require.Zero(t, last)
}

func TestRedisConcurrentNext(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), PoolSize: 50})
	t.Cleanup(func() { _ = client.Close() })

	requireDenseUnique(t, NewRedis(client), Payment, concurrentCallers)
	got, err := mr.Get("ledger:seq:payment")
	require.NoError(t, err)
	require.Equal(t, "1000", got)
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedis(client).Next(context.Background(), Invoice)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFormatNumber(t *testing.T) {
	date := time.Date(2025, 1, 3, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-20250103-0007", FormatNumber("INV", date, 7))
	assert.Equal(t, "DEBT-20250103-12345", Number(Debt, date, 12345))
	assert.Equal(t, "RCP-20250103-0001", Number(Receipt, date, 1))
}

func TestPostgresConcurrentNext(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS document_sequences (
		document_type TEXT PRIMARY KEY,
		last_number BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM document_sequences WHERE document_type = $1`, string(Receipt))
	require.NoError(t, err)

	requireDenseUnique(t, NewPostgres(pool), Receipt, concurrentCallers)
}

func TestPostgresRolledBackTxConsumesNothing(t *testing.T) {
	dsn := os.Getenv("LEDGER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	before, err := NewPostgres(pool).Peek(ctx, Debt)
	require.NoError(t, err)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	n, err := NewPostgres(tx).Next(ctx, Debt)
	require.NoError(t, err)
	require.Equal(t, before+1, n)
	require.NoError(t, tx.Rollback(ctx))

	after, err := NewPostgres(pool).Peek(ctx, Debt)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestMongoConcurrentNext(t *testing.T) {
	uri := os.Getenv("LEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LEDGER_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("ledger_sequence_test")
	require.NoError(t, db.Collection(MongoCollection).Drop(ctx))

	requireDenseUnique(t, NewMongo(db), Invoice, concurrentCallers)
}
