package service

import (
	"strings"
	"time"
)

// WeekLayout is the storage format of week_start_date.
const WeekLayout = "2006-01-02"

const weekSeconds = 7 * 24 * 60 * 60

// CurrentWeekMonday returns the Monday of now's week in now's location.
// Sunday belongs to the week that started six days earlier.
func CurrentWeekMonday(now time.Time) string {
	dow := int(now.Weekday())
	offset := 1
	if dow == 0 {
		offset = -6
	}
	diff := now.Day() - dow + offset
	monday := time.Date(now.Year(), now.Month(), diff, 0, 0, 0, 0, now.Location())
	return monday.Format(WeekLayout)
}

// ParseWeek validates an explicit week string. Empty input yields nil.
func ParseWeek(raw string) (*string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	if _, err := time.Parse(WeekLayout, value); err != nil {
		return nil, invalidf("week %q must look like 2025-06-02", raw)
	}
	return &value, nil
}
