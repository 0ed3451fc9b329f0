// Package pipeline runs the scrape over a company list: it partitions the
// list across isolated workers, resolves and extracts each company in
// order, and flushes rows in write-once batches.
package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/dbd-scraper/internal/financial"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// Resolver finds the registry entry for a company.
type Resolver interface {
	Resolve(ctx context.Context, s session.Session, company model.Company) (model.Match, bool, error)
}

// Extractor pulls financial data for a matched registration number,
// returning financial.ErrNoFinancialData when it finds none.
type Extractor interface {
	Run(ctx context.Context, s session.Session, regNumber string) (financial.Outcome, error)
}

// BatchSink persists flushed batches. Implementations must treat a batch as
// write-once and may skip empty ones.
type BatchSink interface {
	WriteBatch(ctx context.Context, b model.Batch) error
}

// Progress records how far into the input a run has got.
type Progress interface {
	Save(index int) error
}

// BatchNumberer is implemented by sinks that may already hold batches from
// an earlier run. Workers number their batches after the last one.
type BatchNumberer interface {
	LastBatch(worker int) (int, error)
}

// Config is the immutable per-run tuning handed to every worker.
type Config struct {
	RunID     string
	BatchSize int
	// Delay is the pause after every company, whatever its outcome.
	Delay time.Duration
	// StartIndex is the input offset of the first company in this run.
	StartIndex int
}

// DefaultConfig mirrors the default configuration.
func DefaultConfig() Config {
	return Config{BatchSize: 20, Delay: 3 * time.Second}
}

// Summary is what a worker reports upward: row counts only.
type Summary struct {
	WorkerID  int `json:"worker_id"`
	Processed int `json:"processed"`
	Financial int `json:"financial_rows"`
	NotFound  int `json:"not_found_rows"`
}

// Add merges other into s.
func (s Summary) Add(other Summary) Summary {
	s.Processed += other.Processed
	s.Financial += other.Financial
	s.NotFound += other.NotFound
	return s
}

// Partition splits companies into n contiguous chunks whose sizes differ by
// at most one. n is capped at len(companies); empty input yields no chunks.
func Partition(companies []model.Company, n int) [][]model.Company {
	if n < 1 {
		n = 1
	}
	if n > len(companies) {
		n = len(companies)
	}
	chunks := make([][]model.Company, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := len(companies) / n
		if i < len(companies)%n {
			size++
		}
		chunks = append(chunks, companies[start:start+size])
		start += size
	}
	return chunks
}
