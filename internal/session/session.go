// Package session defines the page-level capabilities the scraper needs
// from a registry browsing session, and an HTTP implementation of them.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// Session is a stateful view of one page of the registry at a time.
// Implementations are not safe for concurrent use; each worker owns one.
type Session interface {
	// Navigate loads url and makes it the current page.
	Navigate(ctx context.Context, url string) error
	// CurrentLocation is the address of the current page after redirects.
	CurrentLocation() string
	// TextSnapshot returns the rendered text of the current page, one
	// visual line per text line.
	TextSnapshot(ctx context.Context) (string, error)
	// FindTables returns the tables of the current page in document order.
	FindTables(ctx context.Context) ([]Table, error)
	// ClickFirstMatching activates the first clickable element whose label
	// satisfies match. It reports whether anything was clicked.
	ClickFirstMatching(ctx context.Context, match func(label string) bool) (bool, error)
	// SubmitPageNumber jumps a paginated results list to page n. It reports
	// false when the page has no pagination control.
	SubmitPageNumber(ctx context.Context, n int) (bool, error)
	// Close releases the session's resources.
	Close() error
}

// Factory opens a new session. Workers call it at start-up and again after
// a session fault.
type Factory func(ctx context.Context) (Session, error)

// Table is a rendered table.
type Table struct {
	Rows []Row
}

// Row is one table row. Text is the row's full rendered text.
type Row struct {
	Text  string
	Cells []Cell
}

// Cell is a th or td cell.
type Cell struct {
	Text   string
	Header bool
}

// DataCells returns the texts of the row's td cells in order.
func (r Row) DataCells() []string {
	var out []string
	for _, c := range r.Cells {
		if !c.Header {
			out = append(out, c.Text)
		}
	}
	return out
}

// CellTexts returns the texts of every cell in order.
func (r Row) CellTexts() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Text
	}
	return out
}

// NewRow builds a row from cells, deriving Text.
func NewRow(cells ...Cell) Row {
	r := Row{Cells: cells}
	r.Text = strings.Join(r.CellTexts(), " ")
	return r
}

// ErrFault marks an error after which the session can no longer be trusted
// and must be replaced.
var ErrFault = eris.New("session fault")

type faultError struct {
	err error
}

func (e *faultError) Error() string        { return "session fault: " + e.err.Error() }
func (e *faultError) Unwrap() error        { return e.err }
func (e *faultError) Is(target error) bool { return target == ErrFault }

// Fault marks err as a session fault. A nil err stays nil.
func Fault(err error) error {
	if err == nil {
		return nil
	}
	return &faultError{err: err}
}

// IsFault reports whether err, or anything it wraps, is a session fault.
func IsFault(err error) bool {
	return errors.Is(err, ErrFault)
}
