// Package names derives comparison keys and search queries from Thai
// company names as they appear in input lists and registry search results.
package names

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Legal-entity markers.
const (
	CompanyPrefix     = "บริษัท"
	LimitedSuffix     = "จำกัด"
	PublicMarker      = "มหาชน"
	PartnershipMarker = "ห้างหุ้นส่วน"
)

// partnershipPrefixes are tried longest first so a shorter prefix never
// leaves the tail of a longer one behind.
var partnershipPrefixes = []string{
	"ห้างหุ้นส่วนจำกัด",
	"ห้างหุ้นส่วนสามัญนิติบุคคล",
	"ห้างหุ้นส่วนสามัญ",
}

// resultLineRe matches a search result line: row number, registry id, name.
var resultLineRe = regexp.MustCompile(`^\s*\d+\s+(0\d{12})\s+(.+)`)

// collapse trims, NFC-normalises and collapses runs of whitespace.
func collapse(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Normalize removes the company prefix and the two common partnership
// prefixes, then collapses whitespace.
func Normalize(name string) string {
	n := strings.TrimSpace(name)
	n = strings.TrimSpace(strings.ReplaceAll(n, CompanyPrefix, ""))
	n = strings.TrimSpace(strings.ReplaceAll(n, "ห้างหุ้นส่วนจำกัด", ""))
	n = strings.TrimSpace(strings.ReplaceAll(n, "ห้างหุ้นส่วนสามัญ", ""))
	return collapse(n)
}

// StripPartnershipPrefix removes every partnership prefix found in name.
func StripPartnershipPrefix(name string) string {
	for {
		stripped := false
		for _, prefix := range partnershipPrefixes {
			if strings.Contains(name, prefix) {
				name = strings.TrimSpace(strings.ReplaceAll(name, prefix, ""))
				stripped = true
				break
			}
		}
		if !stripped {
			return name
		}
	}
}

// CoreName returns the canonical comparison key for a company name or a raw
// search result line. CoreName(CoreName(x)) == CoreName(x): one pass can
// expose another row prefix or marker, so passes repeat until nothing
// changes.
func CoreName(text string) string {
	core := coreName(text)
	for {
		next := coreName(core)
		if next == core {
			return core
		}
		core = next
	}
}

// coreName is a single stripping pass. The partnership prefix must go
// before the split on the limited suffix: "ห้างหุ้นส่วนจำกัด" itself contains
// "จำกัด".
func coreName(text string) string {
	core := strings.TrimSpace(text)

	if m := resultLineRe.FindStringSubmatch(core); m != nil {
		core = m[2]
	}

	core = StripPartnershipPrefix(core)
	core = strings.TrimSpace(strings.ReplaceAll(core, CompanyPrefix, ""))

	if i := strings.Index(core, LimitedSuffix); i >= 0 {
		core = core[:i]
	}

	return collapse(core)
}

// fillerPatterns are removed case-insensitively, longest form first.
var fillerPatterns = compileAll(
	`\(ประเทศไทย\)`, `ประเทศไทย`,
	`\(ไทยแลนด์\)`, `ไทยแลนด์`,
	`\(Thailand\)`, `Thailand`,
	`\(เอเชีย\)`, `เอเชีย`,
	`\(Asia\)`, `Asia`,
	`อินเตอร์เนชั่นแนล`, `อินเตอร์เนชันแนล`,
	`กรุ๊ปส์`, `กรุ๊ป`,
	`โฮลดิ้งส์`, `โฮลดิ้ง`,
	`เอ็นเตอร์ไพรส์`, `เอ็นเตอร์ไพรซ์`,
	`คอร์ปอเรชั่น`, `คอร์ปอเรชัน`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// CleanFillerWords removes locale qualifiers and generic corporate words.
func CleanFillerWords(name string) string {
	for _, re := range fillerPatterns {
		name = re.ReplaceAllString(name, "")
	}
	return collapse(name)
}

var (
	parenRe          = regexp.MustCompile(`\([^)]*\)`)
	numericParenRe   = regexp.MustCompile(`\(\d+\)`)
	trailingNumberRe = regexp.MustCompile(`\s+\d+\s*$`)
)

// RemoveParentheticals strips "(...)" groups. Full-width brackets are
// narrowed first so "（...）" goes too.
func RemoveParentheticals(name string) string {
	name = parenRe.ReplaceAllString(width.Narrow.String(name), "")
	return collapse(name)
}

// RemoveTrailingNumbers strips numbers in parentheses and a trailing
// numeric suffix such as a founding year.
func RemoveTrailingNumbers(name string) string {
	name = numericParenRe.ReplaceAllString(name, "")
	name = trailingNumberRe.ReplaceAllString(name, "")
	return collapse(name)
}
