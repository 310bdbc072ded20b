package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sheetcal/internal/model"
)

// subjectSep separates date text, subject and time text in a cell.
const subjectSep = " - "

// defaultDuration is used for timed events without an end time.
const defaultDuration = time.Hour

// Namespace qualifies the name-based event UIDs.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:sheetcal:schedule-event"))

// Synthesizer turns classified cells into ScheduleEvents for one
// academic year.
type Synthesizer struct {
	Tables   Tables
	FallYear int
	// Location is the single local timezone of all instants. Nil means
	// time.Local.
	Location *time.Location
}

// NewSynthesizer returns a Synthesizer with the default tables.
func NewSynthesizer(fallYear int, loc *time.Location) *Synthesizer {
	if loc == nil {
		loc = time.Local
	}
	return &Synthesizer{Tables: DefaultTables(), FallYear: fallYear, Location: loc}
}

func (s *Synthesizer) dates() DateParser {
	return DateParser{Tables: s.Tables, FallYear: s.FallYear, Location: s.location()}
}

func (s *Synthesizer) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// IsCandidate reports whether line should be handed to Synthesize.
func (s *Synthesizer) IsCandidate(line string) bool {
	if s.Tables.zero() {
		return stdTables.IsCandidate(line)
	}
	return s.Tables.IsCandidate(line)
}

// parsedLine is a cell split into its parts.
type parsedLine struct {
	spans    []DateSpan
	summary  string
	timeText string
}

// split separates line into date spans, subject and time text.
//
// Lines are "<dates> - <subject> - <times>". A date range may itself be
// written with " - " ("Dec 20 - Jan 5 - Winter Break"), so segments after
// the first that are plain dates are folded into the date text.
func (s *Synthesizer) split(line string) (parsedLine, error) {
	dp := s.dates()

	var (
		dateText string
		segments []string
	)
	if prefix, rest, ok := SplitRangePrefix(line); ok {
		dateText = prefix
		if rest = strings.TrimLeft(rest, " -"); rest != "" {
			segments = splitSegments(rest)
		}
	} else {
		parts := splitSegments(line)
		dateText, segments = parts[0], parts[1:]
		if len(segments) > 0 && !strings.ContainsAny(dateText, "&-") {
			merged := dateText + subjectSep + segments[0]
			if _, err := dp.ParseDelimited(merged); err == nil {
				dateText, segments = merged, segments[1:]
			}
		}
	}

	var out parsedLine
	switch len(segments) {
	case 0:
		spans, rest := dp.ScanSpans(dateText)
		out.spans = spans
		out.summary = strings.TrimSpace(strings.TrimLeft(rest, " -&/,"))
		out.timeText = line
	case 1:
		out.summary = segments[0]
		out.timeText = segments[0]
	default:
		out.summary = segments[0]
		out.timeText = strings.Join(segments[1:], subjectSep)
	}

	if len(segments) > 0 {
		span, err := dp.ParseDelimited(dateText)
		switch {
		case err == nil:
			out.spans = []DateSpan{span}
		case errors.Is(err, ErrInvalidDate):
			return out, err
		default:
			out.spans, _ = dp.ScanSpans(dateText)
		}
	}
	if len(out.spans) == 0 {
		return out, ErrNoDate
	}
	if out.summary == "" {
		out.summary = line
	}
	return out, nil
}

func splitSegments(s string) []string {
	var out []string
	for _, part := range strings.Split(s, subjectSep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// Synthesize turns one classified cell into one event per date span.
// Lines that carry several distinct dates get a "(day N / M)" suffix on
// each summary.
func (s *Synthesizer) Synthesize(line string) ([]model.ScheduleEvent, error) {
	line = strings.TrimSpace(line)
	parsed, err := s.split(line)
	if err != nil {
		return nil, err
	}
	times := ExtractTimes(parsed.timeText)

	events := make([]model.ScheduleEvent, 0, len(parsed.spans))
	for i, span := range parsed.spans {
		summary := parsed.summary
		if len(parsed.spans) > 1 {
			summary = fmt.Sprintf("%s (day %d / %d)", summary, i+1, len(parsed.spans))
		}
		ev, err := buildEvent(span, times, summary)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func buildEvent(span DateSpan, times []TimeOfDay, summary string) (model.ScheduleEvent, error) {
	start := span.Start
	var end *time.Time

	if len(times) > 0 {
		first, last := times[0], times[len(times)-1]
		start = atTime(span.Start, first)
		switch {
		case span.End != nil:
			e := atTime(*span.End, last)
			end = &e
		case len(times) > 1:
			e := atTime(span.Start, last)
			end = &e
		}
	} else if span.End != nil {
		e := *span.End
		end = &e
	}

	if end != nil && end.Before(start) {
		return model.ScheduleEvent{}, fmt.Errorf("%w: end %s before start %s",
			ErrInvalidDate, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	allDay := start.Hour() == 0 || (end != nil && end.Hour() == 0)
	switch {
	case allDay && end != nil:
		// Exclusive end: midnight after the last day.
		e := end.AddDate(0, 0, 1)
		end = &e
	case !allDay && end == nil:
		e := start.Add(defaultDuration)
		end = &e
	}

	return model.ScheduleEvent{
		UID:     EventUID(start, summary),
		Summary: summary,
		AllDay:  allDay,
		Start:   start,
		End:     end,
	}, nil
}

func atTime(d time.Time, t TimeOfDay) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, d.Location())
}

// EventUID derives the event identifier from the zero-based start month,
// the start year and the summary.
//
// Two different events with the same summary in the same month share a
// UID; consumers rely on that to collapse duplicates.
func EventUID(start time.Time, summary string) string {
	name := fmt.Sprintf("%d%d%s", int(start.Month())-1, start.Year(), summary)
	return uuid.NewSHA1(Namespace, []byte(name)).String()
}
