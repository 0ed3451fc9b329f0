// Package sessiontest provides a scripted in-memory session.Session.
package sessiontest

import (
	"context"
	"fmt"
	"sync"

	"github.com/sells-group/dbd-scraper/internal/session"
)

// Button is a clickable element on a scripted page. An empty Target clicks
// without navigating.
type Button struct {
	Label  string
	Target string
}

// Page is one scripted page state.
type Page struct {
	// Location overrides the address reported after navigation, simulating
	// a server-side redirect.
	Location string
	Text     string
	Tables   []session.Table
	Buttons  []Button
	// LateLocation, when set, becomes the current address once the page's
	// text has been read; the page scripted at that address replaces it.
	LateLocation string
}

// Fake is a scripted Session. Pages maps an address to the pages returned
// on successive visits; the last page repeats once the list is used up.
// Unscripted addresses load an empty page.
type Fake struct {
	Pages map[string][]*Page
	// FailOn makes Navigate to an address return the given error.
	FailOn map[string]error

	mu          sync.Mutex
	visits      map[string]int
	location    string
	current     *Page
	listBase    string
	navigations []string
	closed      bool
}

// New returns a Fake over pages.
func New(pages map[string][]*Page) *Fake {
	return &Fake{Pages: pages, FailOn: map[string]error{}}
}

// Factory returns a session.Factory that always yields f.
func (f *Fake) Factory() session.Factory {
	return func(context.Context) (session.Session, error) { return f, nil }
}

// Navigations returns every address passed to Navigate, in order.
func (f *Fake) Navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigations...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// PageURL is the address SubmitPageNumber loads for page n of a list.
func PageURL(base string, n int) string {
	return fmt.Sprintf("%s&page=%d", base, n)
}

func (f *Fake) load(url string) {
	if f.visits == nil {
		f.visits = map[string]int{}
	}
	pages := f.Pages[url]
	if len(pages) == 0 {
		f.current = &Page{}
		f.location = url
		return
	}
	i := f.visits[url]
	if i >= len(pages) {
		i = len(pages) - 1
	}
	f.visits[url]++
	f.current = pages[i]
	f.location = url
	if f.current.Location != "" {
		f.location = f.current.Location
	}
}

// Navigate implements session.Session.
func (f *Fake) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	if err := f.FailOn[url]; err != nil {
		return err
	}
	f.listBase = url
	f.load(url)
	return nil
}

// CurrentLocation implements session.Session.
func (f *Fake) CurrentLocation() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location
}

// TextSnapshot implements session.Session.
func (f *Fake) TextSnapshot(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return "", nil
	}
	text := f.current.Text
	if late := f.current.LateLocation; late != "" {
		f.location = late
		if pages := f.Pages[late]; len(pages) > 0 {
			f.current = pages[0]
		} else {
			f.current = &Page{}
		}
	}
	return text, nil
}

// FindTables implements session.Session.
func (f *Fake) FindTables(context.Context) ([]session.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	return f.current.Tables, nil
}

// ClickFirstMatching implements session.Session.
func (f *Fake) ClickFirstMatching(_ context.Context, match func(string) bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return false, nil
	}
	for _, b := range f.current.Buttons {
		if !match(b.Label) {
			continue
		}
		if b.Target != "" {
			f.navigations = append(f.navigations, b.Target)
			if err := f.FailOn[b.Target]; err != nil {
				return true, err
			}
			f.load(b.Target)
		}
		return true, nil
	}
	return false, nil
}

// SubmitPageNumber implements session.Session. It loads PageURL of the last
// address passed to Navigate, and reports false when that page is not
// scripted.
func (f *Fake) SubmitPageNumber(_ context.Context, n int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := PageURL(f.listBase, n)
	if _, ok := f.Pages[url]; !ok {
		return false, nil
	}
	f.navigations = append(f.navigations, url)
	if err := f.FailOn[url]; err != nil {
		return false, err
	}
	f.load(url)
	return true, nil
}

// Close implements session.Session.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// TableOf builds a table from rows of td texts; the first row is rendered
// as th cells when header is true.
func TableOf(header bool, rows ...[]string) session.Table {
	var t session.Table
	for i, texts := range rows {
		cells := make([]session.Cell, len(texts))
		for j, txt := range texts {
			cells[j] = session.Cell{Text: txt, Header: header && i == 0}
		}
		t.Rows = append(t.Rows, session.NewRow(cells...))
	}
	return t
}
