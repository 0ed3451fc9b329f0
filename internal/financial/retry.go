package financial

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/resilience"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// ErrNoFinancialData is returned when every attempt for a matched company
// came back empty.
var ErrNoFinancialData = eris.New("financial: no financial data")

// errEmpty marks an empty attempt so the retry loop goes again.
var errEmpty = errors.New("empty extraction")

// attempter runs one extraction attempt.
type attempter interface {
	attempt(ctx context.Context, s session.Session, cur *profileCursor) (model.Extraction, error)
}

// RetryOptions bounds the empty-result retries. Retry k waits k × ExtraWait
// before its attempt.
type RetryOptions struct {
	MaxRetries int
	ExtraWait  time.Duration
}

// Outcome is the successful result of Run.
type Outcome struct {
	Extraction model.Extraction
	// Retries is how many retries were used before the successful attempt.
	Retries int
}

// RetryController repeats extraction while it comes back empty.
type RetryController struct {
	ext  attempter
	opts RetryOptions
	log  *zap.Logger
}

// NewRetryController wraps ext. A negative MaxRetries is treated as zero.
func NewRetryController(ext *Extractor, opts RetryOptions) *RetryController {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &RetryController{
		ext:  ext,
		opts: opts,
		log:  zap.L().With(zap.String("component", "financial_retry")),
	}
}

// Run extracts financial data for regNumber. It returns ErrNoFinancialData
// once all attempts are empty; session and context errors end the loop
// immediately.
func (c *RetryController) Run(ctx context.Context, s session.Session, regNumber string) (Outcome, error) {
	cur := &profileCursor{regNumber: regNumber}
	retries := 0
	log := c.log.With(zap.String("reg_number", regNumber))

	cfg := resilience.RetryConfig{
		MaxAttempts: c.opts.MaxRetries + 1,
		Backoff:     resilience.LinearBackoff(c.opts.ExtraWait),
		ShouldRetry: func(err error) bool { return errors.Is(err, errEmpty) },
		OnRetry: func(retry int, _ error) {
			retries = retry
			log.Info("no financial data, retrying",
				zap.Int("retry", retry),
				zap.Int("max_retries", c.opts.MaxRetries),
				zap.Duration("extra_wait", time.Duration(retry)*c.opts.ExtraWait),
			)
		},
	}

	ext, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (model.Extraction, error) {
		ext, err := c.ext.attempt(ctx, s, cur)
		if err != nil {
			return ext, err
		}
		if ext.Empty() {
			return ext, errEmpty
		}
		return ext, nil
	})
	switch {
	case err == nil:
		if retries > 0 {
			log.Info("financial data found on retry", zap.Int("retry", retries))
		}
		return Outcome{Extraction: ext, Retries: retries}, nil
	case errors.Is(err, errEmpty):
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{Retries: retries}, ErrNoFinancialData
	default:
		return Outcome{}, err
	}
}
