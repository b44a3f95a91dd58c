package meeting

import (
	"strconv"
	"strings"
)

// ToMinutes converts a 12-hour clock reading to minutes since midnight.
//
// "p" adds twelve hours unless the hour is already 12; "a" turns 12 into 0.
// Callers pass hour in [1,12] and minute in [0,59], which the time-range
// pattern guarantees.
func ToMinutes(hourToken, minuteToken, meridiemToken string) int {
	hours, _ := strconv.Atoi(hourToken)
	minutes, _ := strconv.Atoi(minuteToken)

	switch strings.ToLower(meridiemToken) {
	case "p":
		if hours != 12 {
			hours += 12
		}
	case "a":
		if hours == 12 {
			hours = 0
		}
	}
	return hours*60 + minutes
}

// Hours splits minutes since midnight into hour and minute.
func Hours(minuteOfDay int) (hour, minute int) {
	return minuteOfDay / 60, minuteOfDay % 60
}
