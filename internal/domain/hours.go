package domain

import (
	"fmt"
	"time"
)

var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayHours is one day's schedule. A closing time earlier than the opening
// time means the business closes after midnight, on the following day.
type DayHours struct {
	Open   bool   `json:"open"`
	Opens  string `json:"opens,omitempty"`  // HH:MM
	Closes string `json:"closes,omitempty"` // HH:MM
}

// WeeklyHours maps a lowercase english weekday to that day's schedule.
type WeeklyHours map[string]DayHours

func (w WeeklyHours) Clone() WeeklyHours {
	if w == nil {
		return nil
	}
	out := make(WeeklyHours, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func (w WeeklyHours) Validate() error {
	for day, h := range w {
		if !knownWeekday(day) {
			return &ValidationError{Field: "hours", Reason: fmt.Sprintf("unknown day %q", day)}
		}
		if !h.Open {
			continue
		}
		o, err := time.Parse("15:04", h.Opens)
		if err != nil {
			return &ValidationError{Field: "hours", Reason: fmt.Sprintf("%s: bad opening time %q", day, h.Opens)}
		}
		c, err := time.Parse("15:04", h.Closes)
		if err != nil {
			return &ValidationError{Field: "hours", Reason: fmt.Sprintf("%s: bad closing time %q", day, h.Closes)}
		}
		if c.Equal(o) {
			return &ValidationError{Field: "hours", Reason: fmt.Sprintf("%s: opens and closes at the same time", day)}
		}
	}
	return nil
}

func knownWeekday(d string) bool {
	for _, w := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}
