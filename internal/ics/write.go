// Package ics encodes schedule events as iCalendar, reads them back and
// expands them into per-day agenda occurrences.
package ics

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"

	"sheetcal/internal/model"
)

// ProductID is written as the calendar PRODID.
const ProductID = "-//sheetcal//Spreadsheet Calendar//EN"

// Encode renders events as an iCalendar document named title. stamp is
// used as DTSTAMP of every event.
func Encode(title string, events []model.ScheduleEvent, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetName(title)
	cal.SetXWRCalName(title)

	for _, ev := range events {
		ve := cal.AddEvent(ev.UID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Summary)
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			if ev.End != nil {
				ve.SetAllDayEndAt(*ev.End)
			}
			continue
		}
		ve.SetStartAt(ev.Start)
		if ev.End != nil {
			ve.SetEndAt(*ev.End)
		}
	}
	return cal.Serialize()
}

// WriteFile encodes events and writes them to path atomically, creating
// the parent directory when needed.
func WriteFile(path, title string, events []model.ScheduleEvent) error {
	if path == "" {
		return errors.New("output path is empty")
	}
	data := Encode(title, events, time.Now().UTC())

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sheetcal-*.ics.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
