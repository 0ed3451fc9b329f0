package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dbd-scraper/internal/db"
	"github.com/sells-group/dbd-scraper/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const insertBatchSQL = `INSERT INTO scrape_batches (id, run_id, worker_id, batch_number, financial_rows, not_found_rows, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (run_id, worker_id, batch_number) DO NOTHING`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Prepare(ctx, "insert_batch", insertBatchSQL); err != nil {
			return eris.Wrap(err, "postgres: prepare insert_batch")
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scrape_batches (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id         TEXT NOT NULL,
	worker_id      INTEGER NOT NULL,
	batch_number   INTEGER NOT NULL,
	financial_rows INTEGER NOT NULL DEFAULT 0,
	not_found_rows INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, worker_id, batch_number)
);

CREATE TABLE IF NOT EXISTS financial_records (
	batch_id        TEXT NOT NULL REFERENCES scrape_batches(id),
	company         TEXT NOT NULL,
	reg_number      TEXT NOT NULL,
	match_type      TEXT NOT NULL,
	search_strategy TEXT NOT NULL,
	table_type      TEXT NOT NULL,
	field_name      TEXT NOT NULL,
	value           DOUBLE PRECISION NOT NULL,
	year            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS not_found_records (
	batch_id        TEXT NOT NULL REFERENCES scrape_batches(id),
	company         TEXT NOT NULL,
	reg_number      TEXT NOT NULL,
	match_type      TEXT NOT NULL,
	search_strategy TEXT NOT NULL,
	reason          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_financial_records_reg ON financial_records(reg_number);
CREATE INDEX IF NOT EXISTS idx_financial_records_company ON financial_records(company);
CREATE INDEX IF NOT EXISTS idx_not_found_records_reason ON not_found_records(reason);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// WriteBatch stores the batch header, then COPYs its rows, all inside one
// transaction.
func (s *PostgresStore) WriteBatch(ctx context.Context, b model.Batch) error {
	if b.Empty() {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin batch")
	}
	if err := writeBatchTx(ctx, tx, b); err != nil {
		tx.Rollback(ctx) //nolint:errcheck,gosec
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit batch")
}

func writeBatchTx(ctx context.Context, tx pgx.Tx, b model.Batch) error {
	id := uuid.New().String()
	tag, err := tx.Exec(ctx, insertBatchSQL,
		id, b.RunID, b.WorkerID, b.Number, len(b.Financial), len(b.NotFound), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert batch")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDuplicateBatch, "run %s worker %d batch %d", b.RunID, b.WorkerID, b.Number)
	}

	financial := make([][]any, len(b.Financial))
	for i, r := range b.Financial {
		financial[i] = financialArgs(id, r)
	}
	if _, err := db.CopyFrom(ctx, tx, "financial_records", financialColumns, financial); err != nil {
		return eris.Wrap(err, "postgres: copy financial records")
	}

	notFound := make([][]any, len(b.NotFound))
	for i, r := range b.NotFound {
		notFound[i] = notFoundArgs(id, r)
	}
	if _, err := db.CopyFrom(ctx, tx, "not_found_records", notFoundColumns, notFound); err != nil {
		return eris.Wrap(err, "postgres: copy not-found records")
	}
	return nil
}

func (s *PostgresStore) ListFinancials(ctx context.Context, f FinancialFilter) ([]model.FinancialRecord, error) {
	q, args := financialQuery(f, postgresPlaceholder)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list financials")
	}
	defer rows.Close()

	var out []model.FinancialRecord
	for rows.Next() {
		r, err := scanFinancial(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan financial")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate financials")
}

func (s *PostgresStore) ListNotFound(ctx context.Context, f NotFoundFilter) ([]model.NotFoundRecord, error) {
	q, args := notFoundQuery(f, postgresPlaceholder)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list not found")
	}
	defer rows.Close()

	var out []model.NotFoundRecord
	for rows.Next() {
		r, err := scanNotFound(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan not found")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate not found")
}
