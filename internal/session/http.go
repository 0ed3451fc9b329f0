package session

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dbd-scraper/internal/resilience"
)

// maxBodyBytes bounds a single page read.
const maxBodyBytes = 8 << 20

// HTTPOptions configures an HTTPSession.
type HTTPOptions struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             resilience.RetryConfig
}

// HTTPSession implements Session over plain HTTP with a cookie jar. Pages
// are parsed with goquery; clicks follow the href of the matched element.
type HTTPSession struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    HTTPOptions
	log     *zap.Logger

	location string
	doc      *goquery.Document
}

// NewHTTPSession creates a session with a fresh cookie jar.
func NewHTTPSession(opts HTTPOptions) (*HTTPSession, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "session: create cookie jar")
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &HTTPSession{
		client: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		log:     zap.L().With(zap.String("component", "http_session")),
	}, nil
}

// HTTPFactory returns a Factory producing HTTPSessions with opts.
func HTTPFactory(opts HTTPOptions) Factory {
	return func(_ context.Context) (Session, error) {
		return NewHTTPSession(opts)
	}
}

type page struct {
	location string
	doc      *goquery.Document
}

// Navigate fetches target. Transport failures and retryable statuses are
// retried; once retries are spent the error is a session fault. Other
// non-2xx responses still become the current page.
func (s *HTTPSession) Navigate(ctx context.Context, target string) error {
	p, err := s.fetch(ctx, target)
	if err != nil {
		return err
	}

	// Follow a single meta refresh, the way a browser would after load.
	if next := metaRefreshTarget(p.doc); next != "" {
		if abs, ok := resolve(p.location, next); ok && abs != p.location {
			s.log.Debug("following meta refresh", zap.String("from", p.location), zap.String("to", abs))
			if p, err = s.fetch(ctx, abs); err != nil {
				return err
			}
		}
	}

	s.location = p.location
	s.doc = p.doc
	return nil
}

func (s *HTTPSession) fetch(ctx context.Context, target string) (page, error) {
	retry := s.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(s.log, "navigate")
	}

	p, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (page, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return page{}, eris.Wrap(err, "session: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return page{}, eris.Wrap(err, "session: create request")
		}
		req.Header.Set("User-Agent", s.opts.UserAgent)
		req.Header.Set("Accept-Language", "th-TH,th;q=0.9,en;q=0.8")

		resp, err := s.client.Do(req)
		if err != nil {
			return page{}, eris.Wrap(err, "session: fetch")
		}
		defer func() { _ = resp.Body.Close() }()

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return page{}, resilience.CheckStatus(resp.StatusCode, target)
		}

		doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return page{}, eris.Wrap(err, "session: parse html")
		}
		return page{location: resp.Request.URL.String(), doc: doc}, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return page{}, err
		}
		if resilience.IsTransient(err) {
			return page{}, Fault(err)
		}
		return page{}, err
	}
	return p, nil
}

// CurrentLocation implements Session.
func (s *HTTPSession) CurrentLocation() string {
	return s.location
}

// TextSnapshot implements Session.
func (s *HTTPSession) TextSnapshot(_ context.Context) (string, error) {
	if s.doc == nil {
		return "", nil
	}
	var out []string
	for _, n := range s.doc.Nodes {
		out = append(out, renderText(n))
	}
	return strings.Join(out, "\n"), nil
}

// FindTables implements Session.
func (s *HTTPSession) FindTables(_ context.Context) ([]Table, error) {
	if s.doc == nil {
		return nil, nil
	}
	var tables []Table
	s.doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		var table Table
		// Rows of nested tables belong to those tables, not this one.
		t.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Closest("table").IsSelection(t)
		}).Each(func(_ int, tr *goquery.Selection) {
			var cells []Cell
			tr.Children().Filter("th, td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, Cell{
					Text:   strings.Join(strings.Fields(c.Text()), " "),
					Header: goquery.NodeName(c) == "th",
				})
			})
			table.Rows = append(table.Rows, NewRow(cells...))
		})
		tables = append(tables, table)
	})
	return tables, nil
}

// clickable lists the elements ClickFirstMatching considers, in document order.
const clickable = "a, button, [role=tab], [role=button]"

// ClickFirstMatching implements Session. An element without a link target
// counts as clicked but leaves the current page unchanged.
func (s *HTTPSession) ClickFirstMatching(ctx context.Context, match func(label string) bool) (bool, error) {
	if s.doc == nil {
		return false, nil
	}

	var hit *goquery.Selection
	s.doc.Find(clickable).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if match(strings.Join(strings.Fields(el.Text()), " ")) {
			hit = el
			return false
		}
		return true
	})
	if hit == nil {
		return false, nil
	}

	for _, attr := range []string{"href", "data-href", "data-url"} {
		v, ok := hit.Attr(attr)
		if !ok || v == "" || strings.HasPrefix(v, "#") || strings.HasPrefix(strings.ToLower(v), "javascript:") {
			continue
		}
		abs, ok := resolve(s.location, v)
		if !ok {
			continue
		}
		if err := s.Navigate(ctx, abs); err != nil {
			return true, err
		}
		break
	}
	return true, nil
}

// SubmitPageNumber implements Session by setting the pagination input's
// query parameter on the current address.
func (s *HTTPSession) SubmitPageNumber(ctx context.Context, n int) (bool, error) {
	if s.doc == nil {
		return false, nil
	}
	input := s.doc.Find(`input[type=number]`).First()
	if input.Length() == 0 {
		return false, nil
	}
	param := input.AttrOr("name", "page")
	if param == "" {
		param = "page"
	}

	u, err := url.Parse(s.location)
	if err != nil {
		return false, eris.Wrap(err, "session: parse location")
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(n))
	u.RawQuery = q.Encode()

	if err := s.Navigate(ctx, u.String()); err != nil {
		return false, err
	}
	return true, nil
}

// Close implements Session.
func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	s.doc = nil
	return nil
}

func metaRefreshTarget(doc *goquery.Document) string {
	content, ok := doc.Find(`meta[http-equiv]`).FilterFunction(func(_ int, m *goquery.Selection) bool {
		return strings.EqualFold(m.AttrOr("http-equiv", ""), "refresh")
	}).First().Attr("content")
	if !ok {
		return ""
	}
	_, after, found := strings.Cut(content, ";")
	if !found {
		return ""
	}
	after = strings.TrimSpace(after)
	if len(after) < 4 || !strings.EqualFold(after[:4], "url=") {
		return ""
	}
	return strings.Trim(strings.TrimSpace(after[4:]), `'"`)
}

func resolve(base, ref string) (string, bool) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	return b.ResolveReference(r).String(), true
}
