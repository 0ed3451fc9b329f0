package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dbd-scraper/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_WriteBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	b := testBatch("run-1", 2, 3)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scrape_batches .* ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "run-1", 2, 3, 2, 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"financial_records"}, financialColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"not_found_records"}, notFoundColumns).WillReturnResult(2)
	mock.ExpectCommit()

	require.NoError(t, s.WriteBatch(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteBatch_OnlyNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	b := model.Batch{RunID: "run-1", WorkerID: 1, Number: 1, NotFound: []model.NotFoundRecord{{Company: "x", Reason: "r"}}}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scrape_batches`).
		WithArgs(pgxmock.AnyArg(), "run-1", 1, 1, 0, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"not_found_records"}, notFoundColumns).WillReturnResult(1)
	mock.ExpectCommit()

	require.NoError(t, s.WriteBatch(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteBatch_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scrape_batches`).
		WithArgs(pgxmock.AnyArg(), "run-1", 1, 1, 2, 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	err := s.WriteBatch(context.Background(), testBatch("run-1", 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateBatch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteBatch_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scrape_batches`).
		WithArgs(pgxmock.AnyArg(), "run-1", 1, 1, 2, 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"financial_records"}, financialColumns).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	err := s.WriteBatch(context.Background(), testBatch("run-1", 1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy financial records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteBatch_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	require.NoError(t, s.WriteBatch(context.Background(), model.Batch{RunID: "run-1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFinancials(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"company", "reg_number", "match_type", "search_strategy", "table_type", "field_name", "value", "year"}).
		AddRow("บริษัท เอ จำกัด", "0105561000001", "exact", "direct", "งบกำไรขาดทุน", "รายได้รวม", 100.5, 2563)

	mock.ExpectQuery(`SELECT .* FROM financial_records WHERE company LIKE '%' \|\| \$1 \|\| '%' AND reg_number = \$2 ORDER BY .* LIMIT \$3`).
		WithArgs("เอ", "0105561000001", 10).
		WillReturnRows(rows)

	got, err := s.ListFinancials(context.Background(), FinancialFilter{Company: "เอ", RegNumber: "0105561000001", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100.5, got[0].Value)
	assert.Equal(t, 2563, got[0].Year)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"company", "reg_number", "match_type", "search_strategy", "reason"}).
		AddRow("บริษัท บี จำกัด", "", "", "", model.ReasonNoSearchResults)

	mock.ExpectQuery(`SELECT .* FROM not_found_records ORDER BY company LIMIT \$1`).
		WithArgs(DefaultLimit).
		WillReturnRows(rows)

	got, err := s.ListNotFound(context.Background(), NotFoundFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ReasonNoSearchResults, got[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListNotFound_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM not_found_records WHERE reason = \$1`).
		WithArgs("Browser error", DefaultLimit).
		WillReturnError(fmt.Errorf("boom"))

	_, err := s.ListNotFound(context.Background(), NotFoundFilter{Reason: "Browser error"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list not found")
}

func TestPostgresStore_PingAndMigrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS scrape_batches`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
