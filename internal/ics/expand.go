package ics

import (
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 400
)

// ExpandConfig controls agenda expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps the days produced by one multi-day
	// event. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandAgenda turns events into concrete occurrences inside the window.
// Timed events yield at most one occurrence. All-day events yield one
// occurrence per covered day, generated by a DAILY rule from the start
// day up to the day before the exclusive end. The result is ordered by
// start time.
func ExpandAgenda(events []model.ScheduleEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	out := make([]model.Occurrence, 0)
	for _, ev := range events {
		if !ev.AllDay {
			end := ev.EndOrDefault()
			if timeRangesOverlap(ev.Start, end, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, makeOccurrence(ev, ev.Start, end, cfg.DisplayLocation))
			}
			continue
		}

		occ, hitCap := expandAllDay(ev, cfg)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		out = append(out, occ...)
	}

	slices.SortStableFunc(out, func(a, b model.Occurrence) int {
		return a.Start.Compare(b.Start)
	})
	result.Occurrences = out
	return result, nil
}

func expandAllDay(ev model.ScheduleEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)

	first := dayStart(ev.Start)
	last := dayStart(ev.EndOrDefault()).AddDate(0, 0, -1)
	if last.Before(first) {
		last = first
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   last,
	})
	if err != nil {
		appLog.Error("expand: failed to build daily rule", err, "uid", ev.UID)
		return out, false
	}

	loc := first.Location()
	rangeStart := dayStart(cfg.RangeStart.In(loc))
	rangeEnd := cfg.RangeEnd.In(loc)

	days := r.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(days) > cfg.MaxOccurrencesPerEvent {
		days = days[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, d := range days {
		day := dayStart(d)
		out = append(out, makeOccurrence(ev, day, day.AddDate(0, 0, 1), cfg.DisplayLocation))
	}
	return out, hitCap
}

// makeOccurrence converts an event and a concrete start/end into a
// model.Occurrence normalized into displayLoc.
func makeOccurrence(ev model.ScheduleEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	occ := model.Occurrence{
		UID:     ev.UID,
		Summary: ev.Summary,
		AllDay:  ev.AllDay,
		Start:   start.In(displayLoc),
		End:     end.In(displayLoc),
	}
	if ev.AllDay {
		occ.InstanceKey = ev.UID + "/" + start.Format("2006-01-02")
	} else {
		occ.InstanceKey = ev.UID + "/" + occ.Start.Format(time.RFC3339)
	}
	return occ
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
