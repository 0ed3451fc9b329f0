// Package financial reads financial statements from a company profile.
package financial

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/session"
)

var headerYearRe = regexp.MustCompile(`25[6-7][0-9]`)

// findYearTable returns the first table whose first row mentions a year.
func findYearTable(tables []session.Table) (session.Table, bool) {
	for _, t := range tables {
		if len(t.Rows) > 0 && headerYearRe.MatchString(t.Rows[0].Text) {
			return t, true
		}
	}
	return session.Table{}, false
}

// headerYears returns the header cells that are years, in column order.
func headerYears(header session.Row) []int {
	var years []int
	for _, c := range header.Cells {
		if y, ok := model.ParseYear(strings.TrimSpace(c.Text)); ok {
			years = append(years, y)
		}
	}
	return years
}

// parseValue reads a statement cell. Blank, "-" and "0.00" cells carry no
// value.
func parseValue(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	switch cell {
	case "", "-", "0.00":
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RowValues maps a row's td cells onto years. Each year spans two columns,
// the value then the percent change, so year i reads cell 2i.
func RowValues(cells []string, years []int) map[int]float64 {
	out := make(map[int]float64)
	for i, y := range years {
		idx := 2 * i
		if idx >= len(cells) {
			break
		}
		if v, ok := parseValue(cells[idx]); ok {
			out[y] = v
		}
	}
	return out
}

// ParseTable decodes the statement currently on screen into field → year →
// value for the requested fields. A row belongs to the first field whose
// label it contains; a field keeps the first row that claimed it. A missing
// table, missing years or unreadable cells yield fewer or no values, never
// an error.
func ParseTable(tables []session.Table, fields []string) model.FieldValues {
	result := model.FieldValues{}

	table, ok := findYearTable(tables)
	if !ok {
		return result
	}
	years := headerYears(table.Rows[0])
	if len(years) == 0 {
		return result
	}

	claimed := make(map[string]session.Row)
	var order []string
	for _, row := range table.Rows[1:] {
		for _, f := range fields {
			if !strings.Contains(row.Text, f) {
				continue
			}
			if _, taken := claimed[f]; !taken {
				claimed[f] = row
				order = append(order, f)
			}
			break
		}
	}

	for _, f := range order {
		if values := RowValues(claimed[f].DataCells(), years); len(values) > 0 {
			result[f] = values
		}
	}
	return result
}
