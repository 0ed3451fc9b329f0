package main

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/batch"
	"github.com/sells-group/dbd-scraper/internal/config"
	"github.com/sells-group/dbd-scraper/internal/financial"
	"github.com/sells-group/dbd-scraper/internal/input"
	"github.com/sells-group/dbd-scraper/internal/pipeline"
	"github.com/sells-group/dbd-scraper/internal/search"
	"github.com/sells-group/dbd-scraper/internal/session"
	"github.com/sells-group/dbd-scraper/internal/store"
)

var (
	scrapeInput          string
	scrapeColumn         string
	scrapeRegColumn      string
	scrapeSheet          string
	scrapeNoFilter       bool
	scrapeOutput         string
	scrapeNotFoundOutput string
	scrapeForce          bool
	scrapeTest           int
	scrapeStart          int
	scrapeResume         bool
	scrapeWorkers        int
	scrapeBatchSize      int
	scrapeMaxRetries     int
	scrapeNoRetry        bool
	scrapeMaxPages       int
	scrapeSimilarity     float64
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Resolve companies and extract their financial statements",
	Long: `Loads the company list, resolves each name against the DBD registry,
extracts financial tables and writes them in write-once batches that are
combined into the output files at the end.

Examples:
  # Five companies from a spreadsheet column
  dbd-scraper scrape -i companies.xlsx -c "ชื่อบริษัท" --test 5

  # Continue an interrupted single-worker run
  dbd-scraper scrape --resume`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyScrapeFlags(cmd, cfg)
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		if cfg.Input.File == "" {
			return eris.New("scrape: --input (or input.file) is required")
		}
		return runScrape(cmd.Context(), cfg, session.HTTPFactory(httpOptions(cfg)))
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVarP(&scrapeInput, "input", "i", "", "input file (.csv, .xlsx, .txt)")
	f.StringVarP(&scrapeColumn, "column", "c", "", "company name column")
	f.StringVarP(&scrapeRegColumn, "reg-column", "r", "", "registration number column; rows with a valid number skip the search")
	f.StringVarP(&scrapeSheet, "sheet", "s", "", "sheet name for .xlsx input (default first sheet)")
	f.BoolVar(&scrapeNoFilter, "no-filter", false, "include all names, not only Thai legal entities")
	f.StringVarP(&scrapeOutput, "output", "o", "", "combined financial output file")
	f.StringVar(&scrapeNotFoundOutput, "not-found-output", "", "combined not-found output file")
	f.BoolVarP(&scrapeForce, "force", "f", false, "overwrite outputs without a backup copy")
	f.IntVar(&scrapeTest, "test", 0, "only process the first N companies")
	f.IntVar(&scrapeStart, "start", 0, "start from the Nth company (0-indexed)")
	f.BoolVar(&scrapeResume, "resume", false, "start from the saved progress index")
	f.IntVar(&scrapeWorkers, "workers", 1, "parallel workers, each with its own session")
	f.IntVar(&scrapeBatchSize, "batch-size", 20, "companies per batch")
	f.IntVar(&scrapeMaxRetries, "max-retries", 3, "retries when a profile shows no financial data")
	f.BoolVar(&scrapeNoRetry, "no-retry", false, "disable no-data retries")
	f.IntVar(&scrapeMaxPages, "max-search-pages", 20, "result pages scanned per search term")
	f.Float64Var(&scrapeSimilarity, "similarity-threshold", 0.95, "minimum similarity for the fallback match")
	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeFlags overrides config values with flags the user set.
func applyScrapeFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("input") {
		c.Input.File = scrapeInput
	}
	if f.Changed("column") {
		c.Input.CompanyColumn = scrapeColumn
	}
	if f.Changed("reg-column") {
		c.Input.RegColumn = scrapeRegColumn
	}
	if f.Changed("sheet") {
		c.Input.Sheet = scrapeSheet
	}
	if f.Changed("no-filter") {
		c.Input.FilterThai = !scrapeNoFilter
	}
	if f.Changed("output") {
		c.Output.RevenueFile = scrapeOutput
	}
	if f.Changed("not-found-output") {
		c.Output.NotFoundFile = scrapeNotFoundOutput
	}
	if f.Changed("force") {
		c.Output.ForceOverwrite = scrapeForce
	}
	if f.Changed("start") {
		c.Processing.StartIndex = scrapeStart
	}
	if f.Changed("workers") {
		c.Processing.Workers = scrapeWorkers
	}
	if f.Changed("batch-size") {
		c.Processing.BatchSize = scrapeBatchSize
	}
	if f.Changed("max-retries") {
		c.Retry.MaxRetries = scrapeMaxRetries
	}
	if scrapeNoRetry {
		c.Retry.MaxRetries = 0
	}
	if f.Changed("max-search-pages") {
		c.Search.MaxPages = scrapeMaxPages
	}
	if f.Changed("similarity-threshold") {
		c.Search.SimilarityThreshold = scrapeSimilarity
	}
}

func runScrape(ctx context.Context, c *config.Config, factory session.Factory) error {
	log := zap.L().With(zap.String("component", "scrape"))

	companies, err := input.Load(ctx, c.Input.File, inputOptions(c))
	if err != nil {
		return err
	}
	if scrapeTest > 0 && scrapeTest < len(companies) {
		companies = companies[:scrapeTest]
		log.Info("test mode", zap.Int("companies", scrapeTest))
	}

	progress := batch.FileProgress{Path: c.Output.ProgressFile}
	if scrapeResume {
		c.Processing.StartIndex = progress.Load()
		log.Info("resuming", zap.Int("start_index", c.Processing.StartIndex))
	}
	start := c.Processing.StartIndex

	if start == 0 {
		n, err := batch.Clear(c.Output.BatchDir)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("cleared old batches", zap.Int("files", n))
		}
	}

	files, err := batch.NewFileSink(c.Output.BatchDir)
	if err != nil {
		return err
	}
	sinks := pipeline.MultiSink{files}

	st, err := store.Open(ctx, c.Store.Driver, storeDSN(c), poolConfig(c))
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close() //nolint:errcheck
		sinks = append(sinks, st)
	}

	var summary pipeline.Summary
	var runErr error
	if start < len(companies) {
		site := siteFromConfig(c)
		resolver := search.NewOrchestrator(site, searchOptions(c))
		extractor := financial.NewRetryController(financial.NewExtractor(site, extractorOptions(c)), retryOptions(c))

		runID := uuid.New().String()
		pool := pipeline.NewPool(pipelineConfig(c, runID), factory, resolver, extractor, sinks, progress)

		log.Info("starting scrape",
			zap.String("run_id", runID),
			zap.Int("companies", len(companies)-start),
			zap.Int("start_index", start),
			zap.Int("workers", c.Processing.Workers),
			zap.String("mode", c.Extraction.Mode),
		)
		summary, runErr = pool.Run(ctx, companies[start:], c.Processing.Workers)
	} else {
		log.Info("nothing left to process", zap.Int("start_index", start), zap.Int("companies", len(companies)))
	}

	res, err := batch.Combine(c.Output.BatchDir, batch.CombineOptions{
		RevenueOut:  c.Output.RevenueFile,
		NotFoundOut: c.Output.NotFoundFile,
		Force:       c.Output.ForceOverwrite,
	})
	if err != nil {
		return errors.Join(runErr, err)
	}

	log.Info("scrape complete",
		zap.Int("processed", summary.Processed),
		zap.Int("financial_rows", summary.Financial),
		zap.Int("not_found_rows", summary.NotFound),
		zap.Int("combined_financial_rows", res.FinancialRows),
		zap.Int("combined_not_found_rows", res.NotFoundRows),
		zap.String("output", c.Output.RevenueFile),
	)
	if runErr != nil {
		return runErr
	}
	if ctx.Err() != nil {
		log.Warn("scrape interrupted; rerun with --resume to continue")
	}
	return nil
}
