package financial

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/dbd"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/resilience"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// Options selects what to extract and how long to let the profile settle.
type Options struct {
	Mode                  model.ExtractionMode
	IncomeStatementFields []string
	IncludeBalanceSheet   bool
	BalanceSheetFields    []string

	PageLoadWait  time.Duration
	TabClickWait  time.Duration
	TableLoadWait time.Duration
	ExtraWait     time.Duration
}

// DefaultOptions mirrors the default configuration.
func DefaultOptions() Options {
	return Options{
		Mode:                  model.ModeAll,
		IncomeStatementFields: DefaultIncomeStatementFields,
		IncludeBalanceSheet:   true,
		BalanceSheetFields:    DefaultBalanceSheetFields,
		PageLoadWait:          10 * time.Second,
		TabClickWait:          4 * time.Second,
		TableLoadWait:         6 * time.Second,
		ExtraWait:             3 * time.Second,
	}
}

// Extractor performs single extraction attempts against a profile page.
type Extractor struct {
	site dbd.Site
	opts Options
	log  *zap.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(site dbd.Site, opts Options) *Extractor {
	if opts.Mode == "" {
		opts.Mode = model.ModeAll
	}
	return &Extractor{
		site: site,
		opts: opts,
		log:  zap.L().With(zap.String("component", "financial")),
	}
}

// profileCursor remembers which profile prefix resolved for a company so
// later attempts go straight to it.
type profileCursor struct {
	regNumber string
	prefix    string
	found     bool
}

func (e *Extractor) wait(ctx context.Context, d time.Duration) error {
	return resilience.Sleep(ctx, d)
}

// openProfile loads the company profile, trying each prefix until one shows
// identity markers. It reports false when none does.
func (e *Extractor) openProfile(ctx context.Context, s session.Session, cur *profileCursor) (bool, error) {
	prefixes := dbd.ProfilePrefixes
	if cur.found {
		prefixes = []string{cur.prefix}
	}

	for _, prefix := range prefixes {
		url := e.site.ProfileURL(prefix, cur.regNumber)
		if err := s.Navigate(ctx, url); err != nil {
			if session.IsFault(err) || ctx.Err() != nil {
				return false, eris.Wrapf(err, "financial: open profile %s", url)
			}
			e.log.Debug("profile prefix failed", zap.String("url", url), zap.Error(err))
			continue
		}
		if err := e.wait(ctx, e.opts.PageLoadWait); err != nil {
			return false, err
		}
		dbd.AcceptCookies(ctx, s)

		text, err := s.TextSnapshot(ctx)
		if err != nil {
			if session.IsFault(err) {
				return false, eris.Wrap(err, "financial: read profile")
			}
			continue
		}
		if dbd.HasIdentity(text) {
			cur.prefix, cur.found = prefix, true
			return true, nil
		}
	}
	return false, nil
}

// readStatement switches to the sub-view labelled label, if present, and
// parses the table on screen.
func (e *Extractor) readStatement(ctx context.Context, s session.Session, label string, fields []string, required bool) (model.FieldValues, error) {
	clicked, err := s.ClickFirstMatching(ctx, func(l string) bool { return strings.Contains(l, label) })
	if err != nil {
		return nil, eris.Wrapf(err, "financial: open %s", label)
	}
	if !clicked {
		if !required {
			e.log.Debug("statement view not available", zap.String("view", label))
			return model.FieldValues{}, nil
		}
		e.log.Debug("statement button missing, reading current view", zap.String("view", label))
	} else if err := e.wait(ctx, e.opts.TableLoadWait); err != nil {
		return nil, err
	}
	if err := e.wait(ctx, e.opts.ExtraWait); err != nil {
		return nil, err
	}

	tables, err := s.FindTables(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "financial: find tables")
	}
	values := ParseTable(tables, fields)
	if values.Empty() {
		e.log.Debug("no values in statement", zap.String("view", label), zap.Int("tables", len(tables)))
	}
	return values, nil
}

// attempt runs one extraction pass. An empty extraction is a normal result.
func (e *Extractor) attempt(ctx context.Context, s session.Session, cur *profileCursor) (model.Extraction, error) {
	empty := model.Extraction{Mode: e.opts.Mode}

	ok, err := e.openProfile(ctx, s, cur)
	if err != nil || !ok {
		return empty, err
	}

	clicked, err := s.ClickFirstMatching(ctx, dbd.IsFinancialTab)
	if err != nil {
		return empty, eris.Wrap(err, "financial: open financial tab")
	}
	if !clicked {
		e.log.Debug("financial tab not found", zap.String("reg_number", cur.regNumber))
		return empty, nil
	}
	if err := e.wait(ctx, e.opts.TabClickWait); err != nil {
		return empty, err
	}

	if e.opts.Mode == model.ModeRevenueOnly {
		income, err := e.readStatement(ctx, s, dbd.IncomeStatementLabel, []string{model.RevenueField}, true)
		if err != nil {
			return empty, err
		}
		return model.Extraction{Mode: model.ModeRevenueOnly, Revenue: income[model.RevenueField]}, nil
	}

	out := model.Extraction{Mode: model.ModeAll}
	income, err := e.readStatement(ctx, s, dbd.IncomeStatementLabel, e.opts.IncomeStatementFields, true)
	if err != nil {
		return empty, err
	}
	if !income.Empty() {
		out.Tables = append(out.Tables, model.FinancialTable{Type: model.IncomeStatement, Fields: income, Order: e.opts.IncomeStatementFields})
	}

	if e.opts.IncludeBalanceSheet && len(e.opts.BalanceSheetFields) > 0 {
		balance, err := e.readStatement(ctx, s, dbd.BalanceSheetLabel, e.opts.BalanceSheetFields, false)
		if err != nil {
			return empty, err
		}
		if !balance.Empty() {
			out.Tables = append(out.Tables, model.FinancialTable{Type: model.BalanceSheet, Fields: balance, Order: e.opts.BalanceSheetFields})
		}
	}
	return out, nil
}

// Extract runs a single attempt for regNumber.
func (e *Extractor) Extract(ctx context.Context, s session.Session, regNumber string) (model.Extraction, error) {
	return e.attempt(ctx, s, &profileCursor{regNumber: regNumber})
}
