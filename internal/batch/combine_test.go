package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dbd-scraper/internal/model"
)

func writeBatches(t *testing.T, dir string) {
	t.Helper()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	b2 := sampleBatch(2, 1)
	b2.Financial[0].Company = "w2"
	require.NoError(t, sink.WriteBatch(context.Background(), b2))

	b1 := sampleBatch(1, 2)
	b1.Financial[0].Company = "w1b2"
	require.NoError(t, sink.WriteBatch(context.Background(), b1))

	b0 := sampleBatch(1, 1)
	b0.Financial[0].Company = "w1b1"
	require.NoError(t, sink.WriteBatch(context.Background(), b0))
}

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	writeBatches(t, dir)

	out := t.TempDir()
	opts := CombineOptions{
		RevenueOut:  filepath.Join(out, "revenue.csv"),
		NotFoundOut: filepath.Join(out, "not_found.csv"),
	}
	res, err := Combine(dir, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.FinancialRows)
	assert.Equal(t, 3, res.NotFoundRows)
	assert.Empty(t, res.Backups)

	rows := readCSV(t, opts.RevenueOut)
	require.Len(t, rows, 4)
	assert.Equal(t, model.FinancialHeader, rows[0])
	assert.Equal(t, "w1b1", rows[1][0])
	assert.Equal(t, "w1b2", rows[2][0])
	assert.Equal(t, "w2", rows[3][0])

	nf := readCSV(t, opts.NotFoundOut)
	assert.Len(t, nf, 4)
}

func TestCombine_BacksUpExistingOutput(t *testing.T) {
	dir := t.TempDir()
	writeBatches(t, dir)

	orig := now
	now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	out := t.TempDir()
	revOut := filepath.Join(out, "revenue.csv")
	require.NoError(t, os.WriteFile(revOut, []byte("old\n"), 0o644))

	res, err := Combine(dir, CombineOptions{RevenueOut: revOut})
	require.NoError(t, err)

	backup := filepath.Join(out, "revenue_backup_20240305_140709.csv")
	assert.Equal(t, []string{backup}, res.Backups)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data))

	assert.Len(t, readCSV(t, revOut), 4)
}

func TestCombine_ForceSkipsBackup(t *testing.T) {
	dir := t.TempDir()
	writeBatches(t, dir)

	out := t.TempDir()
	revOut := filepath.Join(out, "revenue.csv")
	require.NoError(t, os.WriteFile(revOut, []byte("old\n"), 0o644))

	res, err := Combine(dir, CombineOptions{RevenueOut: revOut, Force: true})
	require.NoError(t, err)
	assert.Empty(t, res.Backups)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCombine_EmptyExistingOutputNotBackedUp(t *testing.T) {
	dir := t.TempDir()
	writeBatches(t, dir)

	out := t.TempDir()
	revOut := filepath.Join(out, "revenue.csv")
	require.NoError(t, os.WriteFile(revOut, nil, 0o644))

	res, err := Combine(dir, CombineOptions{RevenueOut: revOut})
	require.NoError(t, err)
	assert.Empty(t, res.Backups)
}

func TestCombine_NoBatches(t *testing.T) {
	out := filepath.Join(t.TempDir(), "revenue.csv")
	res, err := Combine(t.TempDir(), CombineOptions{RevenueOut: out})
	require.NoError(t, err)
	assert.Zero(t, res.FinancialRows)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}
