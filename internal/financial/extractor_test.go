package financial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/dbd"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/session"
	"github.com/sells-group/dbd-scraper/internal/session/sessiontest"
)

const testReg = "0105561000001"

var site = dbd.NewSite("http://dbd.test")

func noWaitOptions() Options {
	opts := DefaultOptions()
	opts.PageLoadWait, opts.TabClickWait, opts.TableLoadWait, opts.ExtraWait = 0, 0, 0, 0
	return opts
}

var (
	incomeTable = statement(
		header("รายการ", "2563", "%", "2564", "%"),
		row("รายได้รวม", "1,000.00", "", "2,000.00", "5%"),
		row("กำไร(ขาดทุน) สุทธิ", "100.00", "", "-", ""),
	)
	balanceTable = statement(
		header("รายการ", "2563", "%", "2564", "%"),
		row("สินทรัพย์รวม", "5,000.00", "", "6,000.00", ""),
	)
)

// profilePages scripts a profile reachable under prefix "7". incomeVisits
// lists the income statement tables per visit; the balance sheet view is
// only offered alongside a non-empty income statement.
func profilePages(incomeVisits ...[]session.Table) map[string][]*sessiontest.Page {
	income := make([]*sessiontest.Page, len(incomeVisits))
	for i, tables := range incomeVisits {
		income[i] = &sessiontest.Page{Tables: tables}
		if tables != nil {
			income[i].Buttons = []sessiontest.Button{{Label: dbd.BalanceSheetLabel, Target: "balance"}}
		}
	}
	return map[string][]*sessiontest.Page{
		site.ProfileURL("5", testReg): {{Text: "หน้าแรก"}},
		site.ProfileURL("7", testReg): {{
			Text: "ข้อมูลนิติบุคคล\nชื่อนิติบุคคล : บริษัท เอบีซี จำกัด",
			Buttons: []sessiontest.Button{
				{Label: "ยอมรับทั้งหมด"},
				{Label: "ข้อมูลงบการเงินย้อนหลัง", Target: "wrong"},
				{Label: dbd.FinancialTabLabel, Target: "financial"},
			},
		}},
		"financial": {{Buttons: []sessiontest.Button{{Label: "ดู" + dbd.IncomeStatementLabel, Target: "income"}}}},
		"income":    income,
		"balance":   {{Tables: balanceTable}},
	}
}

func count(items []string, want string) int {
	n := 0
	for _, it := range items {
		if it == want {
			n++
		}
	}
	return n
}

func TestExtract_AllMode(t *testing.T) {
	fake := sessiontest.New(profilePages(incomeTable))
	ext, err := NewExtractor(site, noWaitOptions()).Extract(context.Background(), fake, testReg)
	require.NoError(t, err)

	assert.Equal(t, model.ModeAll, ext.Mode)
	require.Len(t, ext.Tables, 2)
	assert.Equal(t, model.IncomeStatement, ext.Tables[0].Type)
	assert.Equal(t, model.FieldValues{
		"รายได้รวม":          {2563: 1000, 2564: 2000},
		"กำไร(ขาดทุน) สุทธิ": {2563: 100},
	}, ext.Tables[0].Fields)
	assert.Equal(t, []string{"รายได้รวม", "กำไร(ขาดทุน) สุทธิ"}, ext.Tables[0].Labels())
	assert.Equal(t, model.BalanceSheet, ext.Tables[1].Type)
	assert.Equal(t, model.FieldValues{"สินทรัพย์รวม": {2563: 5000, 2564: 6000}}, ext.Tables[1].Fields)
	assert.NotContains(t, fake.Navigations(), "wrong")
}

func TestExtract_RevenueOnly(t *testing.T) {
	opts := noWaitOptions()
	opts.Mode = model.ModeRevenueOnly
	fake := sessiontest.New(profilePages(incomeTable))

	ext, err := NewExtractor(site, opts).Extract(context.Background(), fake, testReg)
	require.NoError(t, err)
	assert.Equal(t, model.ModeRevenueOnly, ext.Mode)
	assert.Equal(t, map[int]float64{2563: 1000, 2564: 2000}, ext.Revenue)
	assert.Empty(t, ext.Tables)
	assert.NotContains(t, fake.Navigations(), "balance")
}

func TestExtract_NoBalanceSheet(t *testing.T) {
	opts := noWaitOptions()
	opts.IncludeBalanceSheet = false

	ext, err := NewExtractor(site, opts).Extract(context.Background(), sessiontest.New(profilePages(incomeTable)), testReg)
	require.NoError(t, err)
	require.Len(t, ext.Tables, 1)
	assert.Equal(t, model.IncomeStatement, ext.Tables[0].Type)
}

func TestExtract_NoProfile(t *testing.T) {
	fake := sessiontest.New(nil)
	ext, err := NewExtractor(site, noWaitOptions()).Extract(context.Background(), fake, testReg)
	require.NoError(t, err)
	assert.True(t, ext.Empty())
	assert.Len(t, fake.Navigations(), len(dbd.ProfilePrefixes))
}

func TestExtract_PrefixErrorContinues(t *testing.T) {
	fake := sessiontest.New(profilePages(incomeTable))
	fake.FailOn[site.ProfileURL("5", testReg)] = errors.New("net::ERR_ABORTED")

	ext, err := NewExtractor(site, noWaitOptions()).Extract(context.Background(), fake, testReg)
	require.NoError(t, err)
	assert.False(t, ext.Empty())
}

func TestExtract_FaultPropagates(t *testing.T) {
	fake := sessiontest.New(profilePages(incomeTable))
	fake.FailOn[site.ProfileURL("5", testReg)] = session.Fault(errors.New("tab crashed"))

	_, err := NewExtractor(site, noWaitOptions()).Extract(context.Background(), fake, testReg)
	assert.True(t, session.IsFault(err))
}

func TestRetryController_SucceedsOnThirdAttempt(t *testing.T) {
	fake := sessiontest.New(profilePages(nil, nil, incomeTable))
	rc := NewRetryController(NewExtractor(site, noWaitOptions()), RetryOptions{MaxRetries: 3, ExtraWait: time.Millisecond})

	out, err := rc.Run(context.Background(), fake, testReg)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Retries)
	assert.False(t, out.Extraction.Empty())

	// The resolved prefix is reused after the first attempt.
	navs := fake.Navigations()
	assert.Equal(t, 1, count(navs, site.ProfileURL("5", testReg)))
	assert.Equal(t, 3, count(navs, site.ProfileURL("7", testReg)))
}

func TestRetryController_Exhausted(t *testing.T) {
	fake := sessiontest.New(profilePages(nil))
	rc := NewRetryController(NewExtractor(site, noWaitOptions()), RetryOptions{MaxRetries: 1})

	out, err := rc.Run(context.Background(), fake, testReg)
	assert.ErrorIs(t, err, ErrNoFinancialData)
	assert.Equal(t, 1, out.Retries)
	assert.Equal(t, 2, count(fake.Navigations(), "income"))
}

func TestRetryController_NoRetry(t *testing.T) {
	fake := sessiontest.New(profilePages(nil, incomeTable))
	rc := NewRetryController(NewExtractor(site, noWaitOptions()), RetryOptions{MaxRetries: 0})

	_, err := rc.Run(context.Background(), fake, testReg)
	assert.ErrorIs(t, err, ErrNoFinancialData)
	assert.Equal(t, 1, count(fake.Navigations(), "income"))
}

func TestRetryController_FaultStopsRetries(t *testing.T) {
	fake := sessiontest.New(profilePages(nil))
	fake.FailOn["financial"] = session.Fault(errors.New("browser gone"))
	rc := NewRetryController(NewExtractor(site, noWaitOptions()), RetryOptions{MaxRetries: 3})

	_, err := rc.Run(context.Background(), fake, testReg)
	require.Error(t, err)
	assert.True(t, session.IsFault(err))
	assert.NotErrorIs(t, err, ErrNoFinancialData)
	assert.Equal(t, 1, count(fake.Navigations(), "financial"))
}

type stubAttempter struct {
	results []model.Extraction
	calls   int
}

func (s *stubAttempter) attempt(context.Context, session.Session, *profileCursor) (model.Extraction, error) {
	r := s.results[s.calls]
	s.calls++
	return r, nil
}

func TestRetryController_LinearBackoff(t *testing.T) {
	stub := &stubAttempter{results: []model.Extraction{
		{Mode: model.ModeRevenueOnly},
		{Mode: model.ModeRevenueOnly},
		{Mode: model.ModeRevenueOnly, Revenue: map[int]float64{2564: 1}},
	}}
	rc := &RetryController{ext: stub, opts: RetryOptions{MaxRetries: 3, ExtraWait: 20 * time.Millisecond}, log: zap.NewNop()}

	start := time.Now()
	out, err := rc.Run(context.Background(), nil, testReg)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Retries)
	assert.Equal(t, 3, stub.calls)
	// 1×20ms + 2×20ms.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}
