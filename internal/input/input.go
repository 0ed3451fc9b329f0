// Package input loads the company list from CSV, XLSX or plain-text files.
package input

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/names"
)

// DefaultColumn is the name column looked up when none is configured.
const DefaultColumn = "company_name"

// Options controls how the input file is read.
type Options struct {
	// Column is the company-name header; DefaultColumn and then the first
	// column are used when it is empty or absent.
	Column string
	// RegColumn optionally names a column of known registration numbers.
	RegColumn string
	// Sheet selects an XLSX sheet by name; the first sheet otherwise.
	Sheet string
	// FilterThai keeps only names carrying a Thai legal-entity marker.
	FilterThai bool
}

// Load reads the company list at path. The result is deduplicated by name
// and sorted by name.
func Load(ctx context.Context, path string, opts Options) ([]model.Company, error) {
	log := zap.L().With(zap.String("component", "input"), zap.String("file", path))

	var (
		rows   [][]string
		err    error
		header bool
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(ctx, path)
		header = true
	case ".xlsx":
		rows, err = readXLSX(path, opts.Sheet)
		header = true
	case ".txt":
		rows, err = readText(path)
	default:
		return nil, eris.Errorf("input: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrap(err, "input: read")
	}

	nameIdx, regIdx := 0, -1
	if header {
		if len(rows) == 0 {
			return nil, nil
		}
		nameIdx, regIdx = columns(rows[0], opts)
		if opts.Column != "" && nameIdx >= 0 && rows[0][nameIdx] != opts.Column {
			log.Warn("input: name column not found, falling back",
				zap.String("column", opts.Column), zap.String("using", rows[0][nameIdx]))
		}
		rows = rows[1:]
	}

	companies := make([]model.Company, 0, len(rows))
	invalidRegs := 0
	for _, row := range rows {
		name := cell(row, nameIdx)
		if name == "" {
			continue
		}
		c := model.Company{Name: name}
		if reg := cell(row, regIdx); reg != "" {
			if model.ValidRegNumber(reg) {
				c.RegNumber = reg
			} else {
				invalidRegs++
			}
		}
		companies = append(companies, c)
	}

	total := len(companies)
	if opts.FilterThai {
		companies = FilterThai(companies)
	}
	companies = Dedup(companies)

	log.Info("input loaded",
		zap.Int("rows", total),
		zap.Int("companies", len(companies)),
		zap.Int("invalid_reg_numbers", invalidRegs),
	)
	return companies, nil
}

// columns resolves the name and registration-number column indexes.
func columns(header []string, opts Options) (nameIdx, regIdx int) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
		if _, ok := index[h]; !ok {
			index[h] = i
		}
		header[i] = h
	}

	nameIdx = 0
	if i, ok := index[opts.Column]; ok && opts.Column != "" {
		nameIdx = i
	} else if i, ok := index[DefaultColumn]; ok {
		nameIdx = i
	}

	regIdx = -1
	if i, ok := index[opts.RegColumn]; ok && opts.RegColumn != "" {
		regIdx = i
	}
	return nameIdx, regIdx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// FilterThai keeps companies whose name contains the limited or public
// marker.
func FilterThai(companies []model.Company) []model.Company {
	out := companies[:0:0]
	for _, c := range companies {
		if strings.Contains(c.Name, names.LimitedSuffix) || strings.Contains(c.Name, names.PublicMarker) {
			out = append(out, c)
		}
	}
	return out
}

// Dedup collapses companies sharing a name. A later row carrying a
// registration number replaces an earlier one; otherwise the first wins.
// The result is sorted by name.
func Dedup(companies []model.Company) []model.Company {
	byName := make(map[string]model.Company, len(companies))
	for _, c := range companies {
		if _, seen := byName[c.Name]; !seen || c.HasRegNumber() {
			byName[c.Name] = c
		}
	}

	out := make([]model.Company, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
