package jobs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/diary/pkg/jobs"
)

func TestSchedules(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 1, 31, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule jobs.Schedule
		want     time.Time
	}{
		{"interval", jobs.Every(15 * time.Minute), from.Add(15 * time.Minute)},
		{"daily later today", jobs.DailyAt(11, 0), time.Date(2025, 1, 31, 11, 0, 0, 0, time.UTC)},
		{"daily rolls to tomorrow", jobs.DailyAt(3, 0), time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC)},
		{"daily exact time rolls over", jobs.DailyAt(10, 30), time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC)},
		{"hourly this hour", jobs.HourlyAt(45), time.Date(2025, 1, 31, 10, 45, 0, 0, time.UTC)},
		{"hourly next hour", jobs.HourlyAt(5), time.Date(2025, 1, 31, 11, 5, 0, 0, time.UTC)},
		{"monthly next month", jobs.MonthlyOn(1, 0, 0), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"monthly later today", jobs.MonthlyOn(31, 12, 0), time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)},
		{"monthly clamps short month", jobs.MonthlyOn(31, 9, 0), time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.schedule.Next(from))
			assert.NotEmpty(t, tt.schedule.String())
		})
	}
}

func TestSchedules_InvalidPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { jobs.Every(0) })
	assert.Panics(t, func() { jobs.DailyAt(24, 0) })
	assert.Panics(t, func() { jobs.HourlyAt(60) })
	assert.Panics(t, func() { jobs.MonthlyOn(0, 0, 0) })
	assert.Panics(t, func() { jobs.MonthlyOn(1, 0, 60) })
}
