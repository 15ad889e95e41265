package jobs

import (
	"fmt"
	"time"
)

// Schedule determines when a job should run next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time { return from.Add(s.every) }
func (s intervalSchedule) String() string                { return fmt.Sprintf("every %s", s.every) }

type dailySchedule struct {
	hour, minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string { return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute) }

type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string { return fmt.Sprintf("hourly at :%02d", s.minute) }

type monthlySchedule struct {
	day, hour, minute int
}

func (s monthlySchedule) Next(from time.Time) time.Time {
	next := s.at(from.Year(), from.Month(), from.Location())
	if !next.After(from) {
		next = s.at(from.Year(), from.Month()+1, from.Location())
	}
	return next
}

// at clamps the day to the length of the month, so day 31 fires on the last day.
func (s monthlySchedule) at(year int, month time.Month, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	return time.Date(year, month, min(s.day, last), s.hour, s.minute, 0, 0, loc)
}

func (s monthlySchedule) String() string {
	return fmt.Sprintf("monthly on day %d at %02d:%02d", s.day, s.hour, s.minute)
}

// Every runs at a fixed interval. Panics on non-positive d.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic("jobs: interval must be > 0")
	}
	return intervalSchedule{every: d}
}

// DailyAt runs once a day at hour:minute in the location of the clock.
func DailyAt(hour, minute int) Schedule {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		panic(fmt.Sprintf("jobs: invalid time %02d:%02d", hour, minute))
	}
	return dailySchedule{hour: hour, minute: minute}
}

// HourlyAt runs once an hour at the given minute.
func HourlyAt(minute int) Schedule {
	if minute < 0 || minute > 59 {
		panic(fmt.Sprintf("jobs: invalid minute %d", minute))
	}
	return hourlySchedule{minute: minute}
}

// MonthlyOn runs once a month on the given day at hour:minute. Days past the
// end of a short month fire on its last day.
func MonthlyOn(day, hour, minute int) Schedule {
	if day < 1 || day > 31 {
		panic(fmt.Sprintf("jobs: invalid day of month %d", day))
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		panic(fmt.Sprintf("jobs: invalid time %02d:%02d", hour, minute))
	}
	return monthlySchedule{day: day, hour: hour, minute: minute}
}
