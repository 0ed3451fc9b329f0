package model

import (
	"strconv"
	"unicode/utf8"
)

// Not-found reasons.
const (
	ReasonNoSearchResults = "No search results"
	ReasonNoRevenueData   = "No revenue data"
	ReasonBrowserError    = "Browser error"
)

// MaxReasonLen bounds free-text reasons derived from unclassified errors.
const MaxReasonLen = 100

// FinancialRecord is one flattened output row.
type FinancialRecord struct {
	Company   string  `json:"company"`
	RegNumber string  `json:"reg_number"`
	MatchType string  `json:"match_type"`
	Strategy  string  `json:"strategy"`
	TableType string  `json:"table_type"`
	FieldName string  `json:"field_name"`
	Value     float64 `json:"value"`
	Year      int     `json:"year"`
}

// CSV renders the record in output column order.
func (r FinancialRecord) CSV() []string {
	return []string{
		r.Company,
		r.RegNumber,
		r.MatchType,
		r.Strategy,
		r.TableType,
		r.FieldName,
		strconv.FormatFloat(r.Value, 'f', -1, 64),
		strconv.Itoa(r.Year),
	}
}

// FinancialHeader is the column header for financial batches and outputs.
var FinancialHeader = []string{
	"company_name", "registration_number", "match_type", "search_strategy",
	"table_type", "field_name", "value", "year",
}

// NotFoundRecord records a company that produced no financial rows.
type NotFoundRecord struct {
	Company   string `json:"company"`
	RegNumber string `json:"reg_number"`
	MatchType string `json:"match_type"`
	Strategy  string `json:"strategy"`
	Reason    string `json:"reason"`
}

// CSV renders the record in output column order.
func (r NotFoundRecord) CSV() []string {
	return []string{r.Company, r.RegNumber, r.MatchType, r.Strategy, r.Reason}
}

// NotFoundHeader is the column header for not-found batches and outputs.
var NotFoundHeader = []string{
	"company_name", "registration_number", "match_type", "search_strategy", "reason",
}

// TruncateReason bounds an error message to MaxReasonLen runes.
func TruncateReason(msg string) string {
	if utf8.RuneCountInString(msg) <= MaxReasonLen {
		return msg
	}
	return string([]rune(msg)[:MaxReasonLen])
}

// Batch is a write-once group of rows flushed by one worker.
type Batch struct {
	RunID     string            `json:"run_id"`
	WorkerID  int               `json:"worker_id"`
	Number    int               `json:"number"`
	Financial []FinancialRecord `json:"financial"`
	NotFound  []NotFoundRecord  `json:"not_found"`
}

// Empty reports whether the batch carries no rows.
func (b Batch) Empty() bool {
	return len(b.Financial) == 0 && len(b.NotFound) == 0
}
