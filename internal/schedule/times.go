package schedule

import (
	"regexp"
	"strconv"
	"strings"
)

// TimeOfDay is a clock time already resolved to 24-hour form.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var clockTime = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(a\.m\.|p\.m\.|am|pm)?`)

// ExtractTimes finds every clock time in text, in order.
//
// The calendars omit "pm" on almost every time, so a bare hour from 1 to
// 11 is read as afternoon. Only an explicit "am" or "a.m." keeps it in
// the morning.
func ExtractTimes(text string) []TimeOfDay {
	var out []TimeOfDay
	for _, m := range clockTime.FindAllStringSubmatch(text, -1) {
		hour, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		minute, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		am := strings.ContainsAny(m[3], "aA")
		if hour >= 1 && hour <= 11 && !am {
			hour += 12
		}
		if hour > 23 || minute > 59 {
			continue
		}
		out = append(out, TimeOfDay{Hour: hour, Minute: minute})
	}
	return out
}
