package main

import (
	"github.com/sells-group/dbd-scraper/internal/config"
	"github.com/sells-group/dbd-scraper/internal/dbd"
	"github.com/sells-group/dbd-scraper/internal/financial"
	"github.com/sells-group/dbd-scraper/internal/input"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/pipeline"
	"github.com/sells-group/dbd-scraper/internal/resilience"
	"github.com/sells-group/dbd-scraper/internal/search"
	"github.com/sells-group/dbd-scraper/internal/session"
	"github.com/sells-group/dbd-scraper/internal/store"
)

// Each component receives its own immutable options value, derived once
// from the loaded config.

func siteFromConfig(c *config.Config) dbd.Site {
	return dbd.NewSite(c.Site.BaseURL)
}

func httpOptions(c *config.Config) session.HTTPOptions {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = c.Site.HTTPRetries + 1
	return session.HTTPOptions{
		UserAgent:         c.Site.UserAgent,
		Timeout:           c.Site.RequestTimeout,
		RequestsPerSecond: c.Site.RequestsPerSecond,
		Retry:             retry,
	}
}

func searchOptions(c *config.Config) search.Options {
	return search.Options{
		MaxPages:            c.Search.MaxPages,
		SimilarityThreshold: c.Search.SimilarityThreshold,
		PageLoadWait:        c.Browser.PageLoadWait,
		PageTurnWait:        c.Browser.PageTurnWait,
	}
}

func extractorOptions(c *config.Config) financial.Options {
	opts := financial.Options{
		Mode:                  model.ExtractionMode(c.Extraction.Mode),
		IncomeStatementFields: c.Extraction.IncomeStatementFields,
		IncludeBalanceSheet:   c.Extraction.IncludeBalanceSheet,
		BalanceSheetFields:    c.Extraction.BalanceSheetFields,
		PageLoadWait:          c.Browser.PageLoadWait,
		TabClickWait:          c.Browser.TabClickWait,
		TableLoadWait:         c.Browser.TableLoadWait,
		ExtraWait:             c.Browser.ExtraWait,
	}
	if len(opts.IncomeStatementFields) == 0 {
		opts.IncomeStatementFields = financial.DefaultIncomeStatementFields
	}
	if len(opts.BalanceSheetFields) == 0 {
		opts.BalanceSheetFields = financial.DefaultBalanceSheetFields
	}
	return opts
}

func retryOptions(c *config.Config) financial.RetryOptions {
	return financial.RetryOptions{
		MaxRetries: c.Retry.MaxRetries,
		ExtraWait:  c.Retry.ExtraWaitPerRetry,
	}
}

func pipelineConfig(c *config.Config, runID string) pipeline.Config {
	return pipeline.Config{
		RunID:      runID,
		BatchSize:  c.Processing.BatchSize,
		Delay:      c.Processing.DelayBetweenRequests,
		StartIndex: c.Processing.StartIndex,
	}
}

func inputOptions(c *config.Config) input.Options {
	return input.Options{
		Column:     c.Input.CompanyColumn,
		RegColumn:  c.Input.RegColumn,
		Sheet:      c.Input.Sheet,
		FilterThai: c.Input.FilterThai,
	}
}

func poolConfig(c *config.Config) *store.PoolConfig {
	return &store.PoolConfig{MaxConns: c.Store.MaxConns, MinConns: c.Store.MinConns}
}

// storeDSN falls back to a local database file for sqlite.
func storeDSN(c *config.Config) string {
	if c.Store.DatabaseURL == "" && c.Store.Driver == store.DriverSQLite {
		return "dbd.db"
	}
	return c.Store.DatabaseURL
}
