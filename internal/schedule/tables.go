// Package schedule turns free-text spreadsheet cells of an academic
// calendar into ScheduleEvents.
//
// A cell is first classified (IsCandidate), then split into date text,
// subject and time text. Dates are parsed by a small recursive-descent
// parser over a token stream (see dates.go), times by ExtractTimes, and
// both are merged into events by Synthesizer.
package schedule

import (
	"strings"
	"time"
	"unicode"
)

// Tables holds the read-only lookup data used by the classifier and the
// date parser. Build it once with DefaultTables or NewTables and pass it
// by value; nothing mutates it afterwards.
type Tables struct {
	months    map[string]time.Month
	blacklist map[string]struct{}
}

var defaultMonths = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// Weekday column headers and month banners that appear in the sheets
// as cells of their own.
var defaultBlacklist = []string{
	"M", "T", "W", "Th", "R", "F", "S", "Sa", "Su", "Tu",
	"January", "February", "March", "April", "May", "June", "July",
	"August", "September", "October", "November", "December",
}

var stdTables = DefaultTables()

// DefaultTables returns the month and blacklist tables for English
// academic calendars.
func DefaultTables() Tables {
	return NewTables(defaultMonths, defaultBlacklist)
}

// NewTables copies the given month names (matched case-insensitively) and
// blacklisted cell texts (matched exactly, after trimming).
func NewTables(months map[string]time.Month, blacklist []string) Tables {
	t := Tables{
		months:    make(map[string]time.Month, len(months)),
		blacklist: make(map[string]struct{}, len(blacklist)),
	}
	for name, m := range months {
		t.months[strings.ToLower(name)] = m
	}
	for _, b := range blacklist {
		t.blacklist[strings.TrimSpace(b)] = struct{}{}
	}
	return t
}

func (t Tables) zero() bool {
	return t.months == nil
}

// LookupMonth resolves a month word such as "Sept", "sept." or
// "December".
func (t Tables) LookupMonth(word string) (time.Month, bool) {
	word = strings.TrimSuffix(word, ".")
	m, ok := t.months[strings.ToLower(word)]
	return m, ok
}

// Blacklisted reports whether text is a known non-event cell.
func (t Tables) Blacklisted(text string) bool {
	_, ok := t.blacklist[strings.TrimSpace(text)]
	return ok
}

// leadingWord returns the run of letters at the start of s.
func leadingWord(s string) string {
	end := len(s)
	for i, r := range s {
		if !unicode.IsLetter(r) {
			end = i
			break
		}
	}
	return s[:end]
}

// AcademicOffset is 0 for fall months (August to December) and 1 for
// spring and summer months, which fall in the following calendar year.
func AcademicOffset(m time.Month) int {
	if m >= time.August {
		return 0
	}
	return 1
}

// AcademicYear returns the calendar year of month m in the academic year
// starting in fallYear.
func AcademicYear(fallYear int, m time.Month) int {
	return fallYear + AcademicOffset(m)
}
