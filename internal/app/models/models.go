package models

import "strings"

// Day is a weekday label of the weekly slot grid
type Day string

// Day constants
const (
	DayMonday    Day = "Monday"
	DayTuesday   Day = "Tuesday"
	DayWednesday Day = "Wednesday"
	DayThursday  Day = "Thursday"
	DayFriday    Day = "Friday"
	DaySaturday  Day = "Saturday"
	DaySunday    Day = "Sunday"
)

// Days lists the accepted day labels in calendar order
var Days = []Day{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday, DaySaturday, DaySunday}

// Order returns the position of the day within the week, or -1 for an unknown label
func (d Day) Order() int {
	for i, day := range Days {
		if day == d {
			return i
		}
	}
	return -1
}

// IsValid reports whether d is one of the accepted day labels
func (d Day) IsValid() bool {
	return d.Order() >= 0
}

// ParseDay normalises a case-insensitive day label
func ParseDay(s string) (Day, bool) {
	for _, day := range Days {
		if strings.EqualFold(string(day), strings.TrimSpace(s)) {
			return day, true
		}
	}
	return "", false
}
