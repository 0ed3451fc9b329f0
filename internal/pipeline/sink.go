package pipeline

import (
	"context"

	"github.com/sells-group/dbd-scraper/internal/model"
)

// MultiSink writes each batch to every sink in order, stopping at the
// first failure.
type MultiSink []BatchSink

// WriteBatch implements BatchSink.
func (m MultiSink) WriteBatch(ctx context.Context, b model.Batch) error {
	for _, s := range m {
		if err := s.WriteBatch(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// LastBatch implements BatchNumberer with the highest number reported by
// any member sink.
func (m MultiSink) LastBatch(worker int) (int, error) {
	last := 0
	for _, s := range m {
		bn, ok := s.(BatchNumberer)
		if !ok {
			continue
		}
		n, err := bn.LastBatch(worker)
		if err != nil {
			return 0, err
		}
		last = max(last, n)
	}
	return last, nil
}
