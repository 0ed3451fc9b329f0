package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dbd-scraper/internal/config"
	"github.com/sells-group/dbd-scraper/internal/financial"
	"github.com/sells-group/dbd-scraper/internal/model"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Defaults()
	require.NoError(t, err)
	return c
}

func TestComponentOptions(t *testing.T) {
	c := defaultConfig(t)
	c.Extraction.Mode = "revenue_only"
	c.Extraction.IncomeStatementFields = nil
	c.Processing.StartIndex = 40

	so := searchOptions(c)
	assert.Equal(t, 20, so.MaxPages)
	assert.Equal(t, 10*time.Second, so.PageLoadWait)
	assert.Equal(t, 3*time.Second, so.PageTurnWait)

	eo := extractorOptions(c)
	assert.Equal(t, model.ModeRevenueOnly, eo.Mode)
	assert.Equal(t, financial.DefaultIncomeStatementFields, eo.IncomeStatementFields)
	assert.Equal(t, 4*time.Second, eo.TabClickWait)

	ro := retryOptions(c)
	assert.Equal(t, 3, ro.MaxRetries)
	assert.Equal(t, 2*time.Second, ro.ExtraWait)

	pc := pipelineConfig(c, "run-1")
	assert.Equal(t, "run-1", pc.RunID)
	assert.Equal(t, 20, pc.BatchSize)
	assert.Equal(t, 40, pc.StartIndex)

	ho := httpOptions(c)
	assert.Equal(t, 4, ho.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, ho.Timeout)
}

func TestStoreDSN(t *testing.T) {
	c := defaultConfig(t)
	c.Store.Driver = "sqlite"
	assert.Equal(t, "dbd.db", storeDSN(c))

	c.Store.DatabaseURL = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", storeDSN(c))
}
