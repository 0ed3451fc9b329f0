package model

import (
	"regexp"
)

var regNumberRe = regexp.MustCompile(`^0\d{12}$`)

// Company is one input unit: a free-text company name and, optionally, a
// registration number that was already validated upstream.
type Company struct {
	Name      string `json:"name"`
	RegNumber string `json:"reg_number,omitempty"`
}

// HasRegNumber reports whether the company carries a usable registration number.
func (c Company) HasRegNumber() bool {
	return ValidRegNumber(c.RegNumber)
}

// ValidRegNumber reports whether s is a registry id: "0" followed by 12 digits.
func ValidRegNumber(s string) bool {
	return regNumberRe.MatchString(s)
}

// SearchTerm is one query in a company's search cascade.
type SearchTerm struct {
	Text     string `json:"text"`
	Position int    `json:"position"` // 1-based cascade position
}
