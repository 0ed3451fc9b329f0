package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/dbd-scraper/internal/financial"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, s session.Session, c model.Company) (model.Match, bool, error) {
	args := m.Called(ctx, s, c)
	return args.Get(0).(model.Match), args.Bool(1), args.Error(2)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Run(ctx context.Context, s session.Session, reg string) (financial.Outcome, error) {
	args := m.Called(ctx, s, reg)
	return args.Get(0).(financial.Outcome), args.Error(1)
}

// --- In-memory sink and progress ---

type memSink struct {
	mu      sync.Mutex
	batches []model.Batch
}

func (m *memSink) WriteBatch(_ context.Context, b model.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, b)
	return nil
}

func (m *memSink) byWorker(id int) []model.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Batch
	for _, b := range m.batches {
		if b.WorkerID == id {
			out = append(out, b)
		}
	}
	return out
}

func (m *memSink) rows() ([]model.FinancialRecord, []model.NotFoundRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var fin []model.FinancialRecord
	var nf []model.NotFoundRecord
	for _, b := range m.batches {
		fin = append(fin, b.Financial...)
		nf = append(nf, b.NotFound...)
	}
	return fin, nf
}

type memProgress struct {
	saved []int
}

func (m *memProgress) Save(i int) error {
	m.saved = append(m.saved, i)
	return nil
}

// countingFactory opens fresh sessions from open and counts them.
type countingFactory struct {
	mu     sync.Mutex
	opened int
	open   func() session.Session
}

func (f *countingFactory) factory(context.Context) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return f.open(), nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}
