// Package menu holds the two rotating lunch option sets. Day-of-week parity
// selects which set is offered: Monday/Wednesday/Friday serve the first set,
// Tuesday/Thursday the second. Weekends are excluded from all scheduling and
// get no menu.
package menu

import "time"

// The option sets as the kitchen rotates them. Order is not significant.
var (
	setOne = []string{
		"Qovurma Lag'mon", "Jarkob", "Sokoro", "Do'lma",
		"Osh", "Qovurma Makron", "Xonim", "Bifshteks",
	}
	setTwo = []string{
		"Teftel sho'rva", "Mastava", "Chuchvara",
		"Sho'rva", "Suyuq Lag'mon",
	}
)

// ForDay returns the dish options offered on the given local day, or nil on
// weekends.
func ForDay(t time.Time) []string {
	switch t.Weekday() {
	case time.Monday, time.Wednesday, time.Friday:
		return dishes(setOne)
	case time.Tuesday, time.Thursday:
		return dishes(setTwo)
	default:
		return nil
	}
}

// Contains reports whether dish is offered on the given local day.
func Contains(t time.Time, dish string) bool {
	for _, d := range ForDay(t) {
		if d == dish {
			return true
		}
	}
	return false
}

// IsWorkday reports whether lunch is served on the given local day.
func IsWorkday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func dishes(set []string) []string {
	out := make([]string, len(set))
	copy(out, set)
	return out
}
