package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// Pool fans a company list out over isolated workers.
type Pool struct {
	cfg       Config
	factory   session.Factory
	resolver  Resolver
	extractor Extractor
	sink      BatchSink
	progress  Progress
}

// NewPool creates a Pool. progress is only used when the run ends up with a
// single worker; the index means nothing across several.
func NewPool(cfg Config, factory session.Factory, resolver Resolver, extractor Extractor, sink BatchSink, progress Progress) *Pool {
	return &Pool{
		cfg:       cfg,
		factory:   factory,
		resolver:  resolver,
		extractor: extractor,
		sink:      sink,
		progress:  progress,
	}
}

// Run partitions companies across up to workers workers and waits for all
// of them. One worker failing does not stop the others; the first error is
// returned alongside the combined summary.
func (p *Pool) Run(ctx context.Context, companies []model.Company, workers int) (Summary, error) {
	chunks := Partition(companies, workers)
	if len(chunks) == 0 {
		return Summary{}, nil
	}

	var progress Progress
	if len(chunks) == 1 {
		progress = p.progress
	}

	zap.L().Info("starting workers",
		zap.Int("workers", len(chunks)),
		zap.Int("companies", len(companies)),
		zap.String("run_id", p.cfg.RunID),
	)

	summaries := make([]Summary, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		w := NewWorker(i+1, p.cfg, p.factory, p.resolver, p.extractor, p.sink, progress)
		g.Go(func() error {
			sum, err := w.Run(ctx, chunk)
			summaries[i] = sum
			return err
		})
	}
	err := g.Wait()

	var total Summary
	for _, s := range summaries {
		total = total.Add(s)
	}
	if err != nil {
		return total, eris.Wrap(err, "pipeline: run workers")
	}
	return total, nil
}
