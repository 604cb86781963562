// This file implements the Strategy Pattern for budget period windows.
// Each period type (monthly, semesterly, yearly) has its own strategy that
// knows which calendar window contains a given instant.

package aggregate

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// PeriodWindow is the strategy interface for budget periods.
type PeriodWindow interface {
	// Window returns the half-open interval [start, end) containing now.
	Window(now time.Time) (start, end time.Time)
}

// MonthlyWindow covers the calendar month.
type MonthlyWindow struct{}

func (MonthlyWindow) Window(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// SemesterlyWindow covers January to June or July to December.
type SemesterlyWindow struct{}

func (SemesterlyWindow) Window(now time.Time) (time.Time, time.Time) {
	month := time.January
	if now.Month() >= time.July {
		month = time.July
	}
	start := time.Date(now.Year(), month, 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 6, 0)
}

// YearlyWindow covers the calendar year.
type YearlyWindow struct{}

func (YearlyWindow) Window(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(1, 0, 0)
}

var periodStrategies = map[core.Period]PeriodWindow{
	core.PeriodMonthly:    MonthlyWindow{},
	core.PeriodSemesterly: SemesterlyWindow{},
	core.PeriodYearly:     YearlyWindow{},
}

// GetPeriodWindow returns the window strategy for a budget period.
func GetPeriodWindow(p core.Period) (PeriodWindow, error) {
	w, ok := periodStrategies[p]
	if !ok {
		return nil, fmt.Errorf("unknown budget period: %s", p)
	}
	return w, nil
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
