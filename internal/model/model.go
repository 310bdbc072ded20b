package model

import "time"

// ScheduleEvent is a finalized calendar event synthesized from one
// spreadsheet cell. It is the only type handed to the calendar writer
// and the web API.
type ScheduleEvent struct {
	// UID is derived from (start month, start year, summary), so the same
	// logical event gets the same UID across runs.
	UID string `json:"uid"`

	Summary string `json:"summary"`
	AllDay  bool   `json:"allDay"`

	Start time.Time `json:"start"`
	// End is nil for single-day all-day events. For all-day events it is
	// exclusive (midnight after the last day).
	End *time.Time `json:"end,omitempty"`
}

// EndOrDefault returns End, or the end of the start day for events
// without one.
func (e ScheduleEvent) EndOrDefault() time.Time {
	if e.End != nil {
		return *e.End
	}
	y, m, d := e.Start.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, e.Start.Location())
}

// Occurrence is a single concrete day (or timed instance) of an event
// inside an agenda window.
type Occurrence struct {
	UID string

	// InstanceKey identifies a single day of a multi-day event.
	InstanceKey string

	Summary string
	AllDay  bool

	Start time.Time
	End   time.Time
}
