// Package services provides business logic and orchestration services.
//
// This file holds the schedule strategies deciding when the current assets
// are due to be snapshotted into the history. Each schedule has its own
// checker; the registry maps schedule names to checkers.
package services

import (
	"fmt"
	"strings"
	"time"
)

// Schedule names how often asset snapshots are taken.
type Schedule string

const (
	ScheduleDaily     Schedule = "daily"
	ScheduleWeekly    Schedule = "weekly"
	ScheduleMonthly   Schedule = "monthly"
	ScheduleQuarterly Schedule = "quarterly"
)

// DueChecker decides whether a snapshot is due given the date of the last
// one. anchorDay is the day of month a monthly or quarterly snapshot is
// taken on; days past the end of a month mean its last day.
type DueChecker interface {
	IsDue(lastSnapshot, now time.Time, anchorDay int) bool
}

// DailyChecker is due once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastSnapshot, now time.Time, _ int) bool {
	if lastSnapshot.IsZero() {
		return true
	}
	return lastSnapshot.Format("2006-01-02") != now.Format("2006-01-02")
}

// WeeklyChecker is due when 7 or more days have passed.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastSnapshot, now time.Time, _ int) bool {
	if lastSnapshot.IsZero() {
		return true
	}
	return now.Sub(lastSnapshot).Hours()/24 >= 7
}

// MonthlyChecker is due once per month, on or after the anchor day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastSnapshot, now time.Time, anchorDay int) bool {
	if lastSnapshot.IsZero() {
		return true
	}
	if lastSnapshot.Year() == now.Year() && lastSnapshot.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(now, anchorDay)
}

// QuarterlyChecker is due once per calendar quarter, on or after the
// anchor day of the quarter's first month.
type QuarterlyChecker struct{}

func (QuarterlyChecker) IsDue(lastSnapshot, now time.Time, anchorDay int) bool {
	if lastSnapshot.IsZero() {
		return true
	}
	if lastSnapshot.Year() == now.Year() && quarter(lastSnapshot) == quarter(now) {
		return false
	}
	firstMonth := time.Month((quarter(now)-1)*3 + 1)
	if now.Month() > firstMonth {
		return true
	}
	return now.Day() >= clampDay(now, anchorDay)
}

func quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// clampDay maps anchorDay into now's month: values below 1 mean the first
// day, values past the end mean the last one.
func clampDay(now time.Time, anchorDay int) int {
	if anchorDay < 1 {
		return 1
	}
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if anchorDay > lastDayOfMonth {
		return lastDayOfMonth
	}
	return anchorDay
}

var scheduleCheckers = map[Schedule]DueChecker{
	ScheduleDaily:     DailyChecker{},
	ScheduleWeekly:    WeeklyChecker{},
	ScheduleMonthly:   MonthlyChecker{},
	ScheduleQuarterly: QuarterlyChecker{},
}

// ParseSchedule accepts a schedule name in any case.
func ParseSchedule(s string) (Schedule, error) {
	sch := Schedule(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := scheduleCheckers[sch]; !ok {
		return "", fmt.Errorf("unknown snapshot schedule: %q", s)
	}
	return sch, nil
}

// GetDueChecker returns the checker for a schedule.
func GetDueChecker(s Schedule) (DueChecker, error) {
	checker, ok := scheduleCheckers[s]
	if !ok {
		return nil, fmt.Errorf("unknown snapshot schedule: %s", s)
	}
	return checker, nil
}

// RegisterDueChecker adds or replaces the checker for a schedule.
func RegisterDueChecker(s Schedule, checker DueChecker) {
	scheduleCheckers[s] = checker
}
