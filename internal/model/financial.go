package model

import (
	"regexp"
	"sort"
	"strconv"
)

var yearRe = regexp.MustCompile(`^25[6-7][0-9]$`)

// IsYear reports whether s is a Buddhist-calendar year in the recognised
// window 2560-2579.
func IsYear(s string) bool {
	return yearRe.MatchString(s)
}

// ParseYear returns the year in s, or false when s is not a recognised year.
func ParseYear(s string) (int, bool) {
	if !IsYear(s) {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return y, true
}

// TableType identifies which financial statement a table came from.
type TableType string

const (
	IncomeStatement TableType = "income_statement"
	BalanceSheet    TableType = "balance_sheet"
)

// DisplayName is the registry's label for the statement, used in output rows.
func (t TableType) DisplayName() string {
	switch t {
	case IncomeStatement:
		return "งบกำไรขาดทุน"
	case BalanceSheet:
		return "งบแสดงฐานะการเงิน"
	default:
		return string(t)
	}
}

// RevenueField is the income statement row used in revenue-only mode.
const RevenueField = "รายได้รวม"

// FieldValues maps a field label to its values keyed by year.
type FieldValues map[string]map[int]float64

// Empty reports whether no field carries any value.
func (fv FieldValues) Empty() bool {
	for _, years := range fv {
		if len(years) > 0 {
			return false
		}
	}
	return true
}

// FinancialTable is one decoded statement. Order lists the field labels in
// the order they were requested.
type FinancialTable struct {
	Type   TableType   `json:"type"`
	Fields FieldValues `json:"fields"`
	Order  []string    `json:"order,omitempty"`
}

// Labels returns the labels of t in Order, followed by any label missing
// from Order in byte order.
func (t FinancialTable) Labels() []string {
	labels := make([]string, 0, len(t.Fields))
	listed := make(map[string]bool, len(t.Order))
	for _, label := range t.Order {
		if _, ok := t.Fields[label]; ok && !listed[label] {
			listed[label] = true
			labels = append(labels, label)
		}
	}
	var rest []string
	for label := range t.Fields {
		if !listed[label] {
			rest = append(rest, label)
		}
	}
	sort.Strings(rest)
	return append(labels, rest...)
}

// ExtractionMode selects the shape of an Extraction.
type ExtractionMode string

const (
	ModeAll         ExtractionMode = "all"
	ModeRevenueOnly ExtractionMode = "revenue_only"
)

// Extraction is the tagged result of one extraction attempt. In ModeAll,
// Tables holds every non-empty statement; in ModeRevenueOnly, Revenue holds
// the flat year→value series of the revenue row.
type Extraction struct {
	Mode    ExtractionMode   `json:"mode"`
	Tables  []FinancialTable `json:"tables,omitempty"`
	Revenue map[int]float64  `json:"revenue,omitempty"`
}

// Empty reports whether the extraction yielded no values at all.
func (e Extraction) Empty() bool {
	if e.Mode == ModeRevenueOnly {
		return len(e.Revenue) == 0
	}
	for _, t := range e.Tables {
		if !t.Fields.Empty() {
			return false
		}
	}
	return true
}

// Records flattens the extraction into output rows: fields in requested
// order, years ascending.
func (e Extraction) Records(company string, m Match) []FinancialRecord {
	base := FinancialRecord{
		Company:   company,
		RegNumber: m.RegNumber,
		MatchType: m.TypeLabel(),
		Strategy:  m.Strategy,
	}

	var out []FinancialRecord
	if e.Mode == ModeRevenueOnly {
		for _, y := range sortedYears(e.Revenue) {
			r := base
			r.TableType = IncomeStatement.DisplayName()
			r.FieldName = RevenueField
			r.Value = e.Revenue[y]
			r.Year = y
			out = append(out, r)
		}
		return out
	}

	for _, t := range e.Tables {
		for _, label := range t.Labels() {
			years := t.Fields[label]
			for _, y := range sortedYears(years) {
				r := base
				r.TableType = t.Type.DisplayName()
				r.FieldName = label
				r.Value = years[y]
				r.Year = y
				out = append(out, r)
			}
		}
	}
	return out
}

func sortedYears(m map[int]float64) []int {
	years := make([]int, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
