// Package dbd describes the DBD DataWarehouse registry site: its addresses,
// the text markers the scraper keys on, and parsers for its page text.
package dbd

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/dbd-scraper/internal/match"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// DefaultBaseURL is the public registry site.
const DefaultBaseURL = "https://datawarehouse.dbd.go.th"

const profilePath = "/company/profile/"

// Page markers.
const (
	NoDataMarker          = "ไม่พบข้อมูล"
	RegNumberLabel        = "เลขทะเบียนนิติบุคคล"
	EntityNameLabel       = "ชื่อนิติบุคคล"
	EntityInfoLabel       = "ข้อมูลนิติบุคคล"
	FinancialTabLabel     = "ข้อมูลงบการเงิน"
	IncomeStatementLabel  = "งบกำไรขาดทุน"
	BalanceSheetLabel     = "งบแสดงฐานะการเงิน"
	limitedMarker         = "จำกัด"
	acceptAllCookiesLabel = "ยอมรับทั้งหมด"
	acceptCookiesLabel    = "ยอมรับ"
	closeLabel            = "ปิด"
)

// ProfilePrefixes are the entity-type digits tried in front of a
// registration number when building a profile address.
var ProfilePrefixes = []string{"5", "7", "6", "3", ""}

// Site builds registry addresses.
type Site struct {
	BaseURL string
}

// NewSite returns a Site rooted at baseURL, or DefaultBaseURL when empty.
func NewSite(baseURL string) Site {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Site{BaseURL: strings.TrimRight(baseURL, "/")}
}

// SearchURL is the keyword search address for term.
func (s Site) SearchURL(term string) string {
	return s.BaseURL + "/juristic/searchInfo?keyword=" + url.QueryEscape(term)
}

// ProfileURL is the company profile address for a prefixed registration number.
func (s Site) ProfileURL(prefix, regNumber string) string {
	return s.BaseURL + profilePath + prefix + regNumber
}

// IsProfileURL reports whether location is a company profile page, which
// after a search means the registry redirected straight to one entity.
func IsProfileURL(location string) bool {
	return strings.Contains(location, profilePath)
}

var (
	detailRegRe  = regexp.MustCompile(RegNumberLabel + `\s*[:\s]\s*(0\d{12})`)
	detailNameRe = regexp.MustCompile(EntityNameLabel + `\s*[:\s]\s*(.+?)(?:\n|$)`)
)

// ExtractDetail pulls the registration number and display name from a
// profile page. ok is false when no registration number is present.
func ExtractDetail(text string) (regNumber, name string, ok bool) {
	m := detailRegRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	regNumber = m[1]
	if n := detailNameRe.FindStringSubmatch(text); n != nil {
		name = strings.TrimSpace(n[1])
	}
	return regNumber, name, true
}

// HasIdentity reports whether text looks like a company profile.
func HasIdentity(text string) bool {
	return strings.Contains(text, EntityNameLabel) || strings.Contains(text, EntityInfoLabel)
}

// HasNoData reports whether a search returned the no-results marker.
func HasNoData(text string) bool {
	return strings.Contains(text, NoDataMarker)
}

var (
	pageOfRe    = regexp.MustCompile(`หน้า\s*\d+\s*/?\s*(\d+)`)
	pageSlashRe = regexp.MustCompile(`/\s*(\d+)`)
)

// PageCount reads the total page count from a results page. Each line is
// checked against "หน้า N / M" and then a bare "/ M" (only when M > 1);
// the first line yielding a count wins. It defaults to 1.
func PageCount(text string) int {
	for _, line := range strings.Split(text, "\n") {
		if m := pageOfRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
		if m := pageSlashRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 1 {
				return n
			}
		}
	}
	return 1
}

var lineRegRe = regexp.MustCompile(`(0\d{12})`)

// ResultLines returns the candidates listed on a results page: every line
// that carries a registration number and the limited-company marker.
func ResultLines(text string) []match.Candidate {
	var out []match.Candidate
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, limitedMarker) {
			continue
		}
		if m := lineRegRe.FindStringSubmatch(line); m != nil {
			out = append(out, match.Candidate{RegNumber: m[1], Text: strings.TrimSpace(line)})
		}
	}
	return out
}

// AcceptCookies dismisses the consent banner if one is showing. Failures
// are ignored; the banner does not block reading.
func AcceptCookies(ctx context.Context, s session.Session) {
	clicked, err := s.ClickFirstMatching(ctx, func(label string) bool {
		return strings.Contains(label, acceptAllCookiesLabel) || strings.Contains(label, acceptCookiesLabel)
	})
	if err == nil && clicked {
		return
	}
	_, _ = s.ClickFirstMatching(ctx, func(label string) bool {
		return strings.Contains(label, closeLabel)
	})
}

// IsFinancialTab matches the financial statements tab label exactly.
func IsFinancialTab(label string) bool {
	return strings.TrimSpace(label) == FinancialTabLabel
}
