package names

import (
	"strings"

	"github.com/sells-group/dbd-scraper/internal/model"
)

// termSet collects search terms in discovery order, skipping empties and
// anything already present.
type termSet struct {
	terms []string
	seen  map[string]bool
}

func newTermSet() *termSet {
	return &termSet{seen: make(map[string]bool)}
}

func (s *termSet) add(term string) {
	if term == "" || s.seen[term] {
		return
	}
	s.seen[term] = true
	s.terms = append(s.terms, term)
}

// SearchTerms builds the ordered, deduplicated query cascade for a company:
//
//  1. full name without the company prefix
//  2. partnership: name without the partnership prefix; public company:
//     "จำกัด(มหาชน)" without the space
//  3. partnership: "ห้างหุ้นส่วน <core>"; public company: name with the
//     public marker stripped
//  4. core name
//  5. core name without filler words
//  6. core name without parentheticals
//  7. core name without trailing numbers
//  8. right-to-left word trimming of the cleanest core variant
//
// Steps 5-7 are only added when they change the core name.
func SearchTerms(name string) []model.SearchTerm {
	set := newTermSet()

	base := collapse(strings.ReplaceAll(name, CompanyPrefix, ""))
	set.add(base)

	core := CoreName(name)

	switch {
	case strings.Contains(name, PartnershipMarker):
		set.add(StripPartnershipPrefix(base))
		if core != "" {
			set.add(PartnershipMarker + " " + core)
		}
	case strings.Contains(base, PublicMarker):
		noSpace := strings.ReplaceAll(base, LimitedSuffix+" ("+PublicMarker+")", LimitedSuffix+"("+PublicMarker+")")
		set.add(noSpace)

		limited, _, _ := strings.Cut(base, "("+PublicMarker+")")
		limited, _, _ = strings.Cut(strings.TrimSpace(limited), PublicMarker)
		set.add(strings.TrimSpace(limited))
	}

	set.add(core)

	if v := CleanFillerWords(core); v != core {
		set.add(v)
	}
	noParens := RemoveParentheticals(core)
	if noParens != core {
		set.add(noParens)
	}
	if v := RemoveTrailingNumbers(core); v != core {
		set.add(v)
	}

	trimBase := core
	if noParens != "" && noParens != core {
		trimBase = noParens
	}
	words := strings.Fields(trimBase)
	for n := len(words) - 1; n >= 1; n-- {
		set.add(strings.Join(words[:n], " "))
	}

	out := make([]model.SearchTerm, len(set.terms))
	for i, t := range set.terms {
		out[i] = model.SearchTerm{Text: t, Position: i + 1}
	}
	return out
}
