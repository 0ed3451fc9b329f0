// Package store persists flushed batches in SQLite or Postgres and serves
// the read queries behind the HTTP API.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dbd-scraper/internal/model"
)

// ErrDuplicateBatch is returned when a batch with the same run, worker and
// batch number has already been stored.
var ErrDuplicateBatch = eris.New("store: batch already written")

// Query limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// FinancialFilter narrows ListFinancials.
type FinancialFilter struct {
	// Company matches as a substring of the input company name.
	Company   string `json:"company,omitempty"`
	RegNumber string `json:"reg_number,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// NotFoundFilter narrows ListNotFound.
type NotFoundFilter struct {
	Reason string `json:"reason,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Store is the result store. It doubles as a pipeline batch sink.
type Store interface {
	WriteBatch(ctx context.Context, b model.Batch) error
	ListFinancials(ctx context.Context, f FinancialFilter) ([]model.FinancialRecord, error)
	ListNotFound(ctx context.Context, f NotFoundFilter) ([]model.NotFoundRecord, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Column lists shared by inserts, COPY and selects.
var (
	financialColumns = []string{
		"batch_id", "company", "reg_number", "match_type", "search_strategy",
		"table_type", "field_name", "value", "year",
	}
	notFoundColumns = []string{
		"batch_id", "company", "reg_number", "match_type", "search_strategy", "reason",
	}
)

func normalizeLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// where accumulates filter clauses with driver-specific placeholders.
type where struct {
	placeholder func(n int) string
	clauses     []string
	args        []any
}

// add appends a clause; expr holds one %s for the argument placeholder.
func (w *where) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(expr, w.placeholder(len(w.args))))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// limit appends the LIMIT clause and its argument.
func (w *where) limit(n int) string {
	w.args = append(w.args, normalizeLimit(n))
	return " LIMIT " + w.placeholder(len(w.args))
}

func financialQuery(f FinancialFilter, placeholder func(int) string) (string, []any) {
	w := &where{placeholder: placeholder}
	if f.Company != "" {
		w.add("company LIKE '%%' || %s || '%%'", f.Company)
	}
	if f.RegNumber != "" {
		w.add("reg_number = %s", f.RegNumber)
	}
	q := `SELECT company, reg_number, match_type, search_strategy, table_type, field_name, value, year FROM financial_records` +
		w.String() +
		` ORDER BY company, table_type, field_name, year` +
		w.limit(f.Limit)
	return q, w.args
}

func notFoundQuery(f NotFoundFilter, placeholder func(int) string) (string, []any) {
	w := &where{placeholder: placeholder}
	if f.Reason != "" {
		w.add("reason = %s", f.Reason)
	}
	q := `SELECT company, reg_number, match_type, search_strategy, reason FROM not_found_records` +
		w.String() +
		` ORDER BY company` +
		w.limit(f.Limit)
	return q, w.args
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFinancial(row scannable) (model.FinancialRecord, error) {
	var r model.FinancialRecord
	err := row.Scan(&r.Company, &r.RegNumber, &r.MatchType, &r.Strategy, &r.TableType, &r.FieldName, &r.Value, &r.Year)
	return r, err
}

func scanNotFound(row scannable) (model.NotFoundRecord, error) {
	var r model.NotFoundRecord
	err := row.Scan(&r.Company, &r.RegNumber, &r.MatchType, &r.Strategy, &r.Reason)
	return r, err
}

func financialArgs(batchID string, r model.FinancialRecord) []any {
	return []any{batchID, r.Company, r.RegNumber, r.MatchType, r.Strategy, r.TableType, r.FieldName, r.Value, r.Year}
}

func notFoundArgs(batchID string, r model.NotFoundRecord) []any {
	return []any{batchID, r.Company, r.RegNumber, r.MatchType, r.Strategy, r.Reason}
}
