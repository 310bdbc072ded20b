package schedule

import (
	"errors"
	"slices"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

// LineError records a cell that passed classification but could not be
// turned into events.
type LineError struct {
	Line string
	Err  error
}

func (e LineError) Error() string {
	return e.Err.Error() + ": " + e.Line
}

func (e LineError) Unwrap() error {
	return e.Err
}

// Assemble classifies and synthesizes the cells of one document.
// Identical cells are processed once. Failing lines are logged and
// returned as LineErrors; they never stop the document. The result is
// sorted by start.
func (s *Synthesizer) Assemble(lines []string) ([]model.ScheduleEvent, []LineError) {
	var (
		events  []model.ScheduleEvent
		skipped []LineError
	)
	seen := make(map[string]struct{}, len(lines))

	for _, line := range lines {
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}

		if !s.IsCandidate(line) {
			continue
		}

		evs, err := s.Synthesize(line)
		if err != nil {
			skipped = append(skipped, LineError{Line: line, Err: err})
			if errors.Is(err, ErrInvalidDate) {
				appLog.Error("schedule line has invalid date", err, "line", line, "fall_year", s.FallYear)
			} else {
				appLog.Info("schedule line skipped", "line", line, "reason", err)
			}
			continue
		}
		for _, ev := range evs {
			appLog.Debug("schedule event", "uid", ev.UID, "summary", ev.Summary, "start", ev.Start, "all_day", ev.AllDay)
		}
		events = append(events, evs...)
	}

	SortEvents(events)
	return events, skipped
}

// SortEvents orders events by start. Events with equal starts keep their
// relative order.
func SortEvents(events []model.ScheduleEvent) {
	slices.SortStableFunc(events, func(a, b model.ScheduleEvent) int {
		return a.Start.Compare(b.Start)
	})
}
