package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNoDate means no date token could be read from a line.
	ErrNoDate = errors.New("no date found")
	// ErrInvalidDate means a date or instant could not be constructed,
	// e.g. "Feb 30", "13/5" or an end before its start.
	ErrInvalidDate = errors.New("invalid date")

	errNotDateList = errors.New("not a date list")
)

// delimWindow is how far (in bytes) after a date the parser looks for
// the next "-", "&" or "/".
const delimWindow = 4

// rangePrefix matches a leading "D/D-D/D" range, which is split off
// before subject/time splitting.
var rangePrefix = regexp.MustCompile(`^\d{1,2}/\d{1,2}\s*-\s*\d{1,2}/\d{1,2}`)

var ordinalSuffixes = map[string]bool{"st": true, "nd": true, "rd": true, "th": true}

// DateSpan is a parsed start date and optional end date, both at
// midnight. End, when set, is never before Start.
type DateSpan struct {
	Start time.Time
	End   *time.Time
}

// dateParser is a recursive-descent parser over the tokens of one line.
//
//	spans := span ( sep span )*
//	span  := date ( "-" date )?
//	sep   := "&" | "/"
//	date  := MONTH INT ordinal? | INT "/" INT | INT ordinal?
//
// A bare INT is a day in the most recently seen month. A delimiter must
// start within delimWindow bytes of the previous date.
type dateParser struct {
	toks     []token
	fallYear int
	loc      *time.Location

	cur      int
	lastEnd  int
	month    time.Month
	hasMonth bool
}

type parserState struct {
	cur      int
	lastEnd  int
	month    time.Month
	hasMonth bool
}

func (p *dateParser) save() parserState {
	return parserState{cur: p.cur, lastEnd: p.lastEnd, month: p.month, hasMonth: p.hasMonth}
}

func (p *dateParser) restore(s parserState) {
	p.cur, p.lastEnd, p.month, p.hasMonth = s.cur, s.lastEnd, s.month, s.hasMonth
}

func (p *dateParser) peek(off int) (token, bool) {
	i := p.cur + off
	if i < 0 || i >= len(p.toks) {
		return token{}, false
	}
	return p.toks[i], true
}

// adjacent reports whether b starts exactly where a ends.
func adjacent(a, b token) bool {
	return a.end == b.pos
}

// date parses one date production. On failure the cursor is unchanged.
func (p *dateParser) date() (time.Time, error) {
	st := p.save()
	t0, ok := p.peek(0)
	if !ok {
		return time.Time{}, ErrNoDate
	}

	var (
		month     time.Month
		day       token
		slashDate bool
	)
	switch t0.kind {
	case tokMonth:
		t1, ok := p.peek(1)
		if !ok || !isDayToken(t1) || p.isClock(1) {
			return time.Time{}, ErrNoDate
		}
		month, day = t0.month, t1
		p.cur += 2

	case tokInt:
		if !isDayToken(t0) {
			return time.Time{}, ErrNoDate
		}
		t1, ok1 := p.peek(1)
		t2, ok2 := p.peek(2)
		if ok1 && ok2 && t1.kind == tokDelim && t1.text == "/" && isDayToken(t2) &&
			adjacent(t0, t1) && adjacent(t1, t2) {
			if t0.value < 1 || t0.value > 12 {
				return time.Time{}, fmt.Errorf("%w: month %d", ErrInvalidDate, t0.value)
			}
			month, day = time.Month(t0.value), t2
			p.cur += 3
			slashDate = true
			break
		}
		if !p.hasMonth || p.isClock(0) {
			return time.Time{}, ErrNoDate
		}
		month, day = p.month, t0
		p.cur++

	default:
		return time.Time{}, ErrNoDate
	}

	p.lastEnd = day.end
	year := AcademicYear(p.fallYear, month)
	if slashDate {
		if y, ok := p.slashYear(day); ok {
			year = y
		}
	} else if t, ok := p.peek(0); ok && t.kind == tokWord && adjacent(day, t) && ordinalSuffixes[strings.ToLower(t.text)] {
		p.lastEnd = t.end
		p.cur++
	}

	d, err := makeDate(year, month, day.value, p.loc)
	if err != nil {
		p.restore(st)
		return time.Time{}, err
	}
	p.month, p.hasMonth = month, true
	return d, nil
}

// isDayToken reports whether t can be a day or month number.
func isDayToken(t token) bool {
	return t.kind == tokInt && len(t.text) <= maxDayDigits
}

// slashYear consumes a "/YY" or "/YYYY" directly after the slash date
// ending in day. Two-digit years are read as 20YY.
func (p *dateParser) slashYear(day token) (int, bool) {
	sep, ok1 := p.peek(0)
	y, ok2 := p.peek(1)
	if !ok1 || !ok2 || sep.kind != tokDelim || sep.text != "/" || y.kind != tokInt ||
		!adjacent(day, sep) || !adjacent(sep, y) {
		return 0, false
	}
	year := y.value
	switch len(y.text) {
	case 2:
		year += 2000
	case 4:
	default:
		return 0, false
	}
	p.cur += 2
	p.lastEnd = y.end
	return year, true
}

// isClock reports whether the INT at offset off is the hour of a clock
// time such as "6:00".
func (p *dateParser) isClock(off int) bool {
	n, ok1 := p.peek(off)
	c, ok2 := p.peek(off + 1)
	return ok1 && ok2 && c.kind == tokOther && c.text == ":" && adjacent(n, c)
}

// delimAhead finds the nearest delimiter within delimWindow of the last
// date. Another date-ish token before it ends the search.
func (p *dateParser) delimAhead() (token, int, bool) {
	for i := p.cur; i < len(p.toks) && p.toks[i].pos-p.lastEnd <= delimWindow; i++ {
		switch p.toks[i].kind {
		case tokDelim:
			return p.toks[i], i, true
		case tokMonth, tokInt:
			return token{}, 0, false
		}
	}
	return token{}, 0, false
}

// span parses date ( "-" date )?. The "-" is only consumed when a date
// follows it.
func (p *dateParser) span() (DateSpan, error) {
	start, err := p.date()
	if err != nil {
		return DateSpan{}, err
	}
	out := DateSpan{Start: start}

	if d, i, ok := p.delimAhead(); ok && d.text == "-" {
		st := p.save()
		p.cur = i + 1
		if end, err := p.date(); err == nil {
			out.End = &end
		} else {
			p.restore(st)
		}
	}
	return out, nil
}

// spans parses span ( sep span )* until no further date can be read.
func (p *dateParser) spans() []DateSpan {
	var out []DateSpan
	for {
		s, err := p.span()
		if err != nil {
			return out
		}
		out = append(out, s)

		d, i, ok := p.delimAhead()
		if !ok || (d.text != "&" && d.text != "/") {
			return out
		}
		st := p.save()
		p.cur = i + 1
		if _, ok := p.peek(0); !ok {
			p.restore(st)
			return out
		}
	}
}

func makeDate(year int, month time.Month, day int, loc *time.Location) (time.Time, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if day < 1 || t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("%w: %s %d", ErrInvalidDate, month, day)
	}
	return t, nil
}

// DateParser parses the date portion of schedule lines for one academic
// year.
type DateParser struct {
	Tables   Tables
	FallYear int
	Location *time.Location
}

func (dp DateParser) newParser(text string) *dateParser {
	loc := dp.Location
	if loc == nil {
		loc = time.Local
	}
	return &dateParser{toks: lex(text, dp.tablesOrDefault()), fallYear: dp.FallYear, loc: loc}
}

// ScanSpans reads dates from the start of text until no further date can
// be consumed. It returns the spans and the text after the last date.
// Dates joined by "-" form one span; "&" and "/" start a new span.
func (dp DateParser) ScanSpans(text string) ([]DateSpan, string) {
	p := dp.newParser(text)
	spans := p.spans()
	if len(spans) == 0 {
		return nil, text
	}
	return spans, text[p.lastEnd:]
}

// ParseDelimited parses date text that is already isolated, such as
// "Dec 20 - Jan 5" or "1/15-1/17". Every "-" separated part must be a
// single date; the first is the start and the second the end.
func (dp DateParser) ParseDelimited(text string) (DateSpan, error) {
	parts := strings.Split(text, "-")
	p := dp.newParser("")
	var dates []time.Time
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return DateSpan{}, errNotDateList
		}
		p.toks, p.cur = lex(part, dp.tablesOrDefault()), 0
		d, err := p.date()
		if err != nil {
			return DateSpan{}, err
		}
		if p.cur != len(p.toks) {
			return DateSpan{}, errNotDateList
		}
		dates = append(dates, d)
	}
	out := DateSpan{Start: dates[0]}
	if len(dates) > 1 {
		out.End = &dates[1]
	}
	return out, nil
}

func (dp DateParser) tablesOrDefault() Tables {
	if dp.Tables.zero() {
		return stdTables
	}
	return dp.Tables
}

// SplitRangePrefix splits a leading "D/D-D/D" range off line.
func SplitRangePrefix(line string) (dates, rest string, ok bool) {
	loc := rangePrefix.FindStringIndex(line)
	if loc == nil {
		return "", line, false
	}
	return line[:loc[1]], line[loc[1]:], true
}
