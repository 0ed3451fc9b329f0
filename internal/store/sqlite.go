package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dbd-scraper/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck,gosec
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scrape_batches (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	worker_id      INTEGER NOT NULL,
	batch_number   INTEGER NOT NULL,
	financial_rows INTEGER NOT NULL DEFAULT 0,
	not_found_rows INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
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
	value           REAL NOT NULL,
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlitePlaceholder(int) string { return "?" }

// WriteBatch stores a batch and its rows in one transaction.
func (s *SQLiteStore) WriteBatch(ctx context.Context, b model.Batch) error {
	if b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin batch")
	}
	if err := s.writeBatchTx(ctx, tx, b); err != nil {
		tx.Rollback() //nolint:errcheck,gosec
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit batch")
}

func (s *SQLiteStore) writeBatchTx(ctx context.Context, tx *sql.Tx, b model.Batch) error {
	id := uuid.New().String()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO scrape_batches (id, run_id, worker_id, batch_number, financial_rows, not_found_rows, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (run_id, worker_id, batch_number) DO NOTHING`,
		id, b.RunID, b.WorkerID, b.Number, len(b.Financial), len(b.NotFound), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert batch")
	}
	if n, err := res.RowsAffected(); err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	} else if n == 0 {
		return eris.Wrapf(ErrDuplicateBatch, "run %s worker %d batch %d", b.RunID, b.WorkerID, b.Number)
	}

	if len(b.Financial) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL("financial_records", financialColumns))
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare financial insert")
		}
		defer stmt.Close() //nolint:errcheck
		for _, r := range b.Financial {
			if _, err := stmt.ExecContext(ctx, financialArgs(id, r)...); err != nil {
				return eris.Wrap(err, "sqlite: insert financial record")
			}
		}
	}

	if len(b.NotFound) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL("not_found_records", notFoundColumns))
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare not-found insert")
		}
		defer stmt.Close() //nolint:errcheck
		for _, r := range b.NotFound {
			if _, err := stmt.ExecContext(ctx, notFoundArgs(id, r)...); err != nil {
				return eris.Wrap(err, "sqlite: insert not-found record")
			}
		}
	}
	return nil
}

func insertSQL(table string, columns []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + marks + ")"
}

func (s *SQLiteStore) ListFinancials(ctx context.Context, f FinancialFilter) ([]model.FinancialRecord, error) {
	q, args := financialQuery(f, sqlitePlaceholder)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list financials")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.FinancialRecord
	for rows.Next() {
		r, err := scanFinancial(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan financial")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate financials")
}

func (s *SQLiteStore) ListNotFound(ctx context.Context, f NotFoundFilter) ([]model.NotFoundRecord, error) {
	q, args := notFoundQuery(f, sqlitePlaceholder)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list not found")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.NotFoundRecord
	for rows.Next() {
		r, err := scanNotFound(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan not found")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate not found")
}
