package batch

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/model"
)

// now is swapped in tests.
var now = time.Now

// CombineOptions names the final outputs.
type CombineOptions struct {
	RevenueOut  string
	NotFoundOut string
	// Force overwrites existing outputs without a backup copy.
	Force bool
}

// CombineResult summarises a combine run.
type CombineResult struct {
	FinancialRows int      `json:"financial_rows"`
	NotFoundRows  int      `json:"not_found_rows"`
	Backups       []string `json:"backups,omitempty"`
}

// Combine concatenates all batch files in dir, in file-name order, into the
// two outputs. A row kind with no batch files leaves its output untouched.
func Combine(dir string, opts CombineOptions) (CombineResult, error) {
	var res CombineResult
	log := zap.L().With(zap.String("component", "batch"))

	n, backup, err := combineKind(dir, revenueGlob, opts.RevenueOut, model.FinancialHeader, opts.Force)
	if err != nil {
		return res, err
	}
	res.FinancialRows = n
	if backup != "" {
		res.Backups = append(res.Backups, backup)
	}

	n, backup, err = combineKind(dir, notFoundGlob, opts.NotFoundOut, model.NotFoundHeader, opts.Force)
	if err != nil {
		return res, err
	}
	res.NotFoundRows = n
	if backup != "" {
		res.Backups = append(res.Backups, backup)
	}

	log.Info("batches combined",
		zap.Int("financial_rows", res.FinancialRows),
		zap.Int("not_found_rows", res.NotFoundRows),
		zap.Strings("backups", res.Backups),
	)
	return res, nil
}

func combineKind(dir, pattern, out string, header []string, force bool) (int, string, error) {
	if out == "" {
		return 0, "", nil
	}

	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, "", eris.Wrap(err, "batch: glob")
	}
	if len(files) == 0 {
		return 0, "", nil
	}
	sort.Strings(files)

	var backup string
	if !force {
		backup, err = backupIfPresent(out)
		if err != nil {
			return 0, "", err
		}
	}

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, "", eris.Wrap(err, "batch: create output dir")
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, "", eris.Wrap(err, "batch: create output")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return 0, "", eris.Wrap(err, "batch: write header")
	}

	total := 0
	for _, path := range files {
		n, err := appendRows(w, path)
		if err != nil {
			return total, backup, err
		}
		total += n
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return total, backup, eris.Wrap(err, "batch: flush output")
	}
	return total, backup, f.Close()
}

// appendRows copies the data rows of one batch file, skipping its header.
func appendRows(w *csv.Writer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "batch: open %s", filepath.Base(path))
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	n := 0
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, eris.Wrapf(err, "batch: read %s", filepath.Base(path))
		}
		if first {
			first = false
			continue
		}
		if err := w.Write(record); err != nil {
			return n, eris.Wrap(err, "batch: write row")
		}
		n++
	}
	return n, nil
}

// backupIfPresent copies a non-empty file at path to
// <stem>_backup_<YYYYmmdd_HHMMSS><ext> and returns the backup path.
func backupIfPresent(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "batch: stat output")
	}
	if info.Size() == 0 {
		return "", nil
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if ext == "" {
		ext = ".csv"
	}
	dst := stem + "_backup_" + now().Format("20060102_150405") + ext

	src, err := os.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "batch: open output for backup")
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return "", eris.Wrap(err, "batch: create backup")
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close() //nolint:errcheck,gosec
		return "", eris.Wrap(err, "batch: copy backup")
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrap(err, "batch: close backup")
	}
	return dst, nil
}
