// Package batch persists worker batches as write-once CSV files, combines
// them into the final outputs and tracks single-worker progress.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/model"
)

// File name patterns for batch files.
const (
	revenuePattern  = "revenue_w%d_batch_%03d.csv"
	notFoundPattern = "not_found_w%d_batch_%03d.csv"

	revenueGlob  = "revenue_w*_batch_*.csv"
	notFoundGlob = "not_found_w*_batch_*.csv"
)

// FileSink writes each batch into Dir as one file per row kind.
type FileSink struct {
	Dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "batch: create dir")
	}
	return &FileSink{Dir: dir}, nil
}

// RevenuePath returns the financial batch path for a worker and batch number.
func (s *FileSink) RevenuePath(worker, number int) string {
	return filepath.Join(s.Dir, fmt.Sprintf(revenuePattern, worker, number))
}

// NotFoundPath returns the not-found batch path for a worker and batch number.
func (s *FileSink) NotFoundPath(worker, number int) string {
	return filepath.Join(s.Dir, fmt.Sprintf(notFoundPattern, worker, number))
}

// WriteBatch writes the non-empty row sets of b. An existing file for the
// same worker and batch number is an error: batches are never rewritten.
func (s *FileSink) WriteBatch(_ context.Context, b model.Batch) error {
	if len(b.Financial) > 0 {
		rows := make([][]string, len(b.Financial))
		for i, r := range b.Financial {
			rows[i] = r.CSV()
		}
		if err := writeOnce(s.RevenuePath(b.WorkerID, b.Number), model.FinancialHeader, rows); err != nil {
			return err
		}
	}

	if len(b.NotFound) > 0 {
		rows := make([][]string, len(b.NotFound))
		for i, r := range b.NotFound {
			rows[i] = r.CSV()
		}
		if err := writeOnce(s.NotFoundPath(b.WorkerID, b.Number), model.NotFoundHeader, rows); err != nil {
			return err
		}
	}

	zap.L().Debug("batch: written",
		zap.Int("worker", b.WorkerID),
		zap.Int("batch", b.Number),
		zap.Int("financial_rows", len(b.Financial)),
		zap.Int("not_found_rows", len(b.NotFound)),
	)
	return nil
}

// batchNameRe matches both batch file kinds: worker, then batch number.
var batchNameRe = regexp.MustCompile(`^(?:revenue|not_found)_w(\d+)_batch_(\d+)\.csv$`)

// LastBatch returns the highest batch number already written for worker,
// or 0 when there is none. A run that resumes into a directory holding an
// earlier run's batches numbers its own batches after this one.
func (s *FileSink) LastBatch(worker int) (int, error) {
	last := 0
	for _, glob := range []string{revenueGlob, notFoundGlob} {
		matches, err := filepath.Glob(filepath.Join(s.Dir, glob))
		if err != nil {
			return 0, eris.Wrap(err, "batch: glob")
		}
		for _, m := range matches {
			sub := batchNameRe.FindStringSubmatch(filepath.Base(m))
			if sub == nil || sub[1] != strconv.Itoa(worker) {
				continue
			}
			if n, err := strconv.Atoi(sub[2]); err == nil {
				last = max(last, n)
			}
		}
	}
	return last, nil
}

func writeOnce(path string, header []string, rows [][]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return eris.Wrapf(err, "batch: create %s", filepath.Base(path))
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "batch: write header")
	}
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrap(err, "batch: write rows")
	}
	return f.Close()
}

// Clear removes every batch file in dir. A missing dir is not an error.
func Clear(dir string) (int, error) {
	removed := 0
	for _, pattern := range []string{revenueGlob, notFoundGlob} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return removed, eris.Wrap(err, "batch: glob")
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return removed, eris.Wrapf(err, "batch: remove %s", filepath.Base(m))
			}
			removed++
		}
	}
	return removed, nil
}
