package schedule

import (
	"regexp"
	"strings"
)

var (
	slashDatePrefix = regexp.MustCompile(`^\d{1,2}/\d{1,2}`)
	// "September 2024" and similar banner cells.
	monthBanner = regexp.MustCompile(`^[A-Za-z]+\.?\s+\d{4}$`)
)

// IsCandidate reports whether a cell looks like a schedule entry: it
// starts with a month name or a slash date and is not a blacklisted
// header cell. Lines that pass may still fail to parse later.
func (t Tables) IsCandidate(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || t.Blacklisted(text) {
		return false
	}
	if slashDatePrefix.MatchString(text) {
		return true
	}
	if _, ok := t.LookupMonth(leadingWord(text)); !ok {
		return false
	}
	return !monthBanner.MatchString(text)
}
