package ics

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
)

// ReadFile decodes a calendar previously written by WriteFile.
func ReadFile(path string, loc *time.Location) ([]model.ScheduleEvent, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(body, loc)
}

// Decode parses an iCalendar payload into ScheduleEvents. Instants are
// converted to loc (time.Local when nil); DATE values are read as
// midnight in loc and mark the event all-day. Broken VEVENTs are logged
// and skipped.
func Decode(body []byte, loc *time.Location) ([]model.ScheduleEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]model.ScheduleEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := decodeVEvent(ve, loc)
		if perr != nil {
			appLog.Error("ics vevent decode failed", perr)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeVEvent(ve *ical.VEvent, loc *time.Location) (model.ScheduleEvent, error) {
	var out model.ScheduleEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(startProp)

	if out.AllDay {
		start, err := parseDate(startProp.Value, loc)
		if err != nil {
			return out, err
		}
		out.Start = start
		if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
			end, err := parseDate(endProp.Value, loc)
			if err != nil {
				return out, err
			}
			out.End = &end
		}
		return out, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start.In(loc)
	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		end, err := ve.GetEndAt()
		if err != nil {
			return out, err
		}
		end = end.In(loc)
		out.End = &end
	}
	return out, nil
}

// isDateValue reports VALUE=DATE or a value without a time part.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty date value")
	}
	return time.ParseInLocation("20060102", v, loc)
}
