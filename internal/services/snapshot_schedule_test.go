package services

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestDailyChecker_IsDue(t *testing.T) {
	checker := DailyChecker{}
	now := day(2024, 1, 15)

	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"never taken - is due", time.Time{}, true},
		{"taken today - not due", time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), false},
		{"taken yesterday - is due", day(2024, 1, 14), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.last, now, 1); got != tt.want {
				t.Errorf("DailyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklyChecker_IsDue(t *testing.T) {
	checker := WeeklyChecker{}
	now := day(2024, 1, 15)

	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"never taken - is due", time.Time{}, true},
		{"taken 3 days ago - not due", day(2024, 1, 12), false},
		{"taken 7 days ago - is due", day(2024, 1, 8), true},
		{"taken 10 days ago - is due", day(2024, 1, 5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.last, now, 1); got != tt.want {
				t.Errorf("WeeklyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_IsDue(t *testing.T) {
	checker := MonthlyChecker{}

	tests := []struct {
		name   string
		last   time.Time
		now    time.Time
		anchor int
		want   bool
	}{
		{"never taken - is due", time.Time{}, day(2024, 1, 15), 10, true},
		{"taken this month - not due", day(2024, 1, 10), day(2024, 1, 15), 10, false},
		{"new month before anchor - not due", day(2024, 1, 15), day(2024, 2, 10), 15, false},
		{"new month on anchor - is due", day(2024, 1, 15), day(2024, 2, 15), 15, true},
		{"anchor 31 in leap February - last day", day(2024, 1, 31), day(2024, 2, 29), 31, true},
		{"anchor 31 on February 28 of leap year - not due", day(2024, 1, 31), day(2024, 2, 28), 31, false},
		{"anchor 0 means first day", day(2024, 1, 31), day(2024, 2, 1), 0, true},
		{"new year - is due", day(2023, 12, 31), day(2024, 1, 1), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.last, tt.now, tt.anchor); got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuarterlyChecker_IsDue(t *testing.T) {
	checker := QuarterlyChecker{}

	tests := []struct {
		name   string
		last   time.Time
		now    time.Time
		anchor int
		want   bool
	}{
		{"never taken - is due", time.Time{}, day(2024, 5, 1), 1, true},
		{"same quarter - not due", day(2024, 4, 2), day(2024, 6, 30), 1, false},
		{"new quarter first month before anchor - not due", day(2024, 3, 31), day(2024, 4, 5), 10, false},
		{"new quarter first month on anchor - is due", day(2024, 3, 31), day(2024, 4, 10), 10, true},
		{"new quarter later month - is due", day(2024, 3, 31), day(2024, 5, 2), 10, true},
		{"same quarter next year - is due", day(2023, 4, 15), day(2024, 4, 15), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.last, tt.now, tt.anchor); got != tt.want {
				t.Errorf("QuarterlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in      string
		want    Schedule
		wantErr bool
	}{
		{"daily", ScheduleDaily, false},
		{" Weekly ", ScheduleWeekly, false},
		{"MONTHLY", ScheduleMonthly, false},
		{"quarterly", ScheduleQuarterly, false},
		{"hourly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSchedule(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSchedule(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSchedule(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegisterDueChecker(t *testing.T) {
	custom := Schedule("biweekly")
	if _, err := GetDueChecker(custom); err == nil {
		t.Fatal("biweekly should not be registered yet")
	}

	RegisterDueChecker(custom, WeeklyChecker{})
	defer delete(scheduleCheckers, custom)

	checker, err := GetDueChecker(custom)
	if err != nil || checker == nil {
		t.Fatalf("GetDueChecker() after register = %v, %v", checker, err)
	}
}
