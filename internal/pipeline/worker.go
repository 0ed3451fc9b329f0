package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/financial"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/resilience"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// Worker processes one chunk of companies strictly in order with its own
// session. Workers share nothing mutable.
type Worker struct {
	id        int
	cfg       Config
	factory   session.Factory
	resolver  Resolver
	extractor Extractor
	sink      BatchSink
	progress  Progress
	log       *zap.Logger
}

// NewWorker creates a worker. progress may be nil.
func NewWorker(id int, cfg Config, factory session.Factory, resolver Resolver, extractor Extractor, sink BatchSink, progress Progress) *Worker {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Worker{
		id:        id,
		cfg:       cfg,
		factory:   factory,
		resolver:  resolver,
		extractor: extractor,
		sink:      sink,
		progress:  progress,
		log:       zap.L().With(zap.String("component", "worker"), zap.Int("worker", id)),
	}
}

// result is the outcome of one company.
type result struct {
	financial []model.FinancialRecord
	notFound  []model.NotFoundRecord
	fault     bool
}

// Run processes companies and returns row counts. Cancelling ctx stops the
// worker between companies; rows collected so far are flushed first. An
// error means the worker could not continue: no session could be opened or
// a batch could not be written.
func (w *Worker) Run(ctx context.Context, companies []model.Company) (Summary, error) {
	sum := Summary{WorkerID: w.id}
	w.log.Info("worker starting", zap.Int("companies", len(companies)))

	s, err := w.factory(ctx)
	if err != nil {
		return sum, eris.Wrapf(err, "pipeline: worker %d open session", w.id)
	}
	defer func() {
		if s != nil {
			_ = s.Close()
		}
	}()

	first := 1
	if bn, ok := w.sink.(BatchNumberer); ok {
		last, err := bn.LastBatch(w.id)
		if err != nil {
			return sum, eris.Wrapf(err, "pipeline: worker %d find last batch", w.id)
		}
		first = last + 1
	}

	batch := w.newBatch(first)
	flush := func(processed int) error {
		if err := w.sink.WriteBatch(context.WithoutCancel(ctx), batch); err != nil {
			return eris.Wrapf(err, "pipeline: worker %d write batch %d", w.id, batch.Number)
		}
		sum.Financial += len(batch.Financial)
		sum.NotFound += len(batch.NotFound)
		if w.progress != nil {
			if err := w.progress.Save(w.cfg.StartIndex + processed); err != nil {
				w.log.Warn("save progress failed", zap.Error(err))
			}
		}
		batch = w.newBatch(batch.Number + 1)
		return nil
	}

	for i, c := range companies {
		if ctx.Err() != nil {
			break
		}
		log := w.log.With(zap.String("company", c.Name), zap.Int("index", i+1), zap.Int("of", len(companies)))
		log.Info("processing company")

		res, canceled := w.process(ctx, s, c, log)
		if canceled {
			break
		}
		batch.Financial = append(batch.Financial, res.financial...)
		batch.NotFound = append(batch.NotFound, res.notFound...)
		sum.Processed++

		if res.fault {
			log.Warn("session fault, replacing session")
			_ = s.Close()
			if s, err = w.factory(ctx); err != nil {
				s = nil
				if ferr := flush(i + 1); ferr != nil {
					return sum, ferr
				}
				return sum, eris.Wrapf(err, "pipeline: worker %d replace session", w.id)
			}
		}

		processed := i + 1
		if processed%w.cfg.BatchSize == 0 || processed == len(companies) {
			if err := flush(processed); err != nil {
				return sum, err
			}
		}

		if resilience.Sleep(ctx, w.cfg.Delay) != nil {
			break
		}
	}

	if !batch.Empty() {
		w.log.Info("flushing partial batch after cancellation", zap.Int("batch", batch.Number))
		if err := flush(sum.Processed); err != nil {
			return sum, err
		}
	}

	w.log.Info("worker done",
		zap.Int("processed", sum.Processed),
		zap.Int("financial_rows", sum.Financial),
		zap.Int("not_found_rows", sum.NotFound),
	)
	return sum, nil
}

func (w *Worker) newBatch(n int) model.Batch {
	return model.Batch{RunID: w.cfg.RunID, WorkerID: w.id, Number: n}
}

// process resolves and extracts one company. Every failure becomes a
// not-found row; canceled is true when ctx ended mid-company, in which case
// nothing is recorded.
func (w *Worker) process(ctx context.Context, s session.Session, c model.Company, log *zap.Logger) (result, bool) {
	var m model.Match
	if c.HasRegNumber() {
		m = model.ExistingMatch(c.RegNumber)
		log.Info("using existing registration number", zap.String("reg_number", m.RegNumber))
	} else {
		found, ok, err := w.resolver.Resolve(ctx, s, c)
		if err != nil {
			return w.failure(ctx, c, err, log)
		}
		if !ok {
			return result{notFound: []model.NotFoundRecord{{
				Company: c.Name,
				Reason:  model.ReasonNoSearchResults,
			}}}, false
		}
		m = found
	}

	out, err := w.extractor.Run(ctx, s, m.RegNumber)
	switch {
	case errors.Is(err, financial.ErrNoFinancialData):
		log.Info("no financial data", zap.String("reg_number", m.RegNumber))
		return result{notFound: []model.NotFoundRecord{{
			Company:   c.Name,
			RegNumber: m.RegNumber,
			MatchType: m.TypeLabel(),
			Strategy:  m.Strategy,
			Reason:    model.ReasonNoRevenueData,
		}}}, false
	case err != nil:
		return w.failure(ctx, c, err, log)
	}

	rows := out.Extraction.Records(c.Name, m)
	log.Info("financial data extracted",
		zap.String("reg_number", m.RegNumber),
		zap.String("match_type", m.TypeLabel()),
		zap.Int("rows", len(rows)),
		zap.Int("retries", out.Retries),
	)
	return result{financial: rows}, false
}

func (w *Worker) failure(ctx context.Context, c model.Company, err error, log *zap.Logger) (result, bool) {
	if ctx.Err() != nil {
		return result{}, true
	}
	row := model.NotFoundRecord{Company: c.Name, RegNumber: c.RegNumber}
	if session.IsFault(err) {
		log.Error("session fault", zap.Error(err))
		row.Reason = model.ReasonBrowserError
		return result{notFound: []model.NotFoundRecord{row}, fault: true}, false
	}
	log.Error("company failed", zap.Error(err))
	row.Reason = model.TruncateReason(err.Error())
	return result{notFound: []model.NotFoundRecord{row}}, false
}
