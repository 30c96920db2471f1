package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCalendar is fixed at Tuesday 2025-11-18 10:30 in Asia/Jerusalem.
func testCalendar(t *testing.T) *Calendar {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	now := time.Date(2025, 11, 18, 10, 30, 0, 0, loc)
	return New(Options{
		Location: loc,
		Now:      func() time.Time { return now },
	})
}

func TestGenerateAvailableWindow(t *testing.T) {
	cal := testCalendar(t)
	slots := cal.GenerateAvailable(nil, 14)

	require.NotEmpty(t, slots)
	assert.Equal(t, "2025-11-18 11:00", slots[0])
	assert.Equal(t, "2025-12-01 15:00", slots[len(slots)-1])
	assert.Len(t, slots, 77)

	now := cal.Now()
	for i, s := range slots {
		ts, err := cal.ParseSlot(s)
		require.NoError(t, err)
		assert.True(t, ts.After(now), s)
		assert.NotEqual(t, time.Friday, ts.Weekday(), s)
		assert.NotEqual(t, time.Saturday, ts.Weekday(), s)
		assert.GreaterOrEqual(t, ts.Hour(), 8, s)
		assert.LessOrEqual(t, ts.Hour(), 15, s)
		assert.Zero(t, ts.Minute(), s)
		if i > 0 {
			prev, _ := cal.ParseSlot(slots[i-1])
			assert.True(t, ts.After(prev), "slots must be chronological")
		}
	}
}

func TestGenerateAvailableExcludesBooked(t *testing.T) {
	cal := testCalendar(t)
	booked := map[string]bool{"2025-11-18 11:00": true, "2025-11-19 08:00": true}
	slots := cal.GenerateAvailable(booked, 14)

	assert.NotContains(t, slots, "2025-11-18 11:00")
	assert.NotContains(t, slots, "2025-11-19 08:00")
	assert.Equal(t, "2025-11-18 12:00", slots[0])
	assert.Len(t, slots, 75)
}

func TestGenerateAvailableDefaultLookahead(t *testing.T) {
	cal := testCalendar(t)
	assert.Equal(t, cal.GenerateAvailable(nil, 14), cal.GenerateAvailable(nil, 0))
	assert.Len(t, cal.GenerateAvailable(nil, 1), 5)
}

func TestIsAvailable(t *testing.T) {
	cal := testCalendar(t)
	booked := map[string]bool{"2025-11-20 09:00": true}

	tests := []struct {
		name string
		slot string
		want bool
	}{
		{"free future slot", "2025-11-19 10:00", true},
		{"later today", "2025-11-18 15:00", true},
		{"booked", "2025-11-20 09:00", false},
		{"earlier today", "2025-11-18 10:00", false},
		{"friday", "2025-11-21 10:00", false},
		{"saturday", "2025-11-22 10:00", false},
		{"after last start", "2025-11-19 16:00", false},
		{"before first start", "2025-11-19 07:00", false},
		{"off the hour", "2025-11-19 10:30", false},
		{"beyond lookahead", "2025-12-02 10:00", false},
		{"bad format", "Nov 19 10am", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsAvailable(tt.slot, booked, 14))
		})
	}
}

func TestCheck(t *testing.T) {
	cal := testCalendar(t)

	assert.NoError(t, cal.Check("2025-11-19 10:00"))
	for _, slot := range []string{"2025-11-19", "2025-11-18 09:00", "2025-11-21 10:00", "2025-11-19 17:00"} {
		err := cal.Check(slot)
		require.Error(t, err, slot)
		assert.True(t, errors.Is(err, domain.ErrInvalidSlot), slot)
	}
}

func TestRepairSameWeekday(t *testing.T) {
	cal := testCalendar(t)

	got, ok := cal.RepairSameWeekday("2025-11-19 12:00", map[string]bool{"2025-11-19 12:00": true}, 14)
	require.True(t, ok)
	assert.Equal(t, "2025-11-26 12:00", got)

	// a past slot is repaired to the next occurrence
	got, ok = cal.RepairSameWeekday("2025-11-11 09:00", nil, 14)
	require.True(t, ok)
	assert.Equal(t, "2025-11-25 09:00", got)

	_, ok = cal.RepairSameWeekday("2025-11-19 12:00", map[string]bool{
		"2025-11-19 12:00": true,
		"2025-11-26 12:00": true,
	}, 14)
	assert.False(t, ok)

	_, ok = cal.RepairSameWeekday("not a slot", nil, 14)
	assert.False(t, ok)
}

func TestRepairSameWeekdayStaleYear(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		name   string
		slot   string
		booked map[string]bool
		want   string
	}{
		{name: "last year tuesday", slot: "2024-11-19 12:00", want: "2025-11-25 12:00"},
		{name: "last year wednesday", slot: "2024-11-20 14:00", want: "2025-11-19 14:00"},
		{name: "first match taken", slot: "2024-11-20 14:00", booked: map[string]bool{"2025-11-19 14:00": true}, want: "2025-11-26 14:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cal.RepairSameWeekday(tt.slot, tt.booked, 14)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextWeekday(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		name   string
		wd     time.Weekday
		hour   int
		minute int
		want   string
	}{
		{"later this week", time.Sunday, 10, 0, "2025-11-23 10:00"},
		{"today still ahead", time.Tuesday, 14, 0, "2025-11-18 14:00"},
		{"today already passed", time.Tuesday, 9, 0, "2025-11-25 09:00"},
		{"tomorrow with minutes", time.Wednesday, 13, 30, "2025-11-19 13:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cal.NextWeekday(tt.wd, tt.hour, tt.minute)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Tuesday, November 18 at 12:00 PM", Format("2025-11-18 12:00"))
	assert.Equal(t, "Wednesday, November 05 at 09:00 AM", Format("2025-11-05 09:00"))
	assert.Equal(t, "sometime next week", Format("sometime next week"))
	assert.Equal(t, "", Format(""))
}

func TestFormatList(t *testing.T) {
	got := FormatList([]string{"2025-11-18 12:00", "2025-11-19 08:00"})
	assert.Equal(t, "Tuesday, November 18 at 12:00 PM or Wednesday, November 19 at 08:00 AM", got)
	assert.Equal(t, "", FormatList(nil))
}

func TestParseWeekday(t *testing.T) {
	wd, ok := ParseWeekday(" Thursday ")
	require.True(t, ok)
	assert.Equal(t, time.Thursday, wd)

	_, ok = ParseWeekday("someday")
	assert.False(t, ok)
}

func TestFromConfig(t *testing.T) {
	cal, err := FromConfig(config.Defaults().Schedule)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jerusalem", cal.Location().String())
	assert.Equal(t, 14, cal.LookaheadDays())
	assert.True(t, cal.AllowsWeekday(time.Sunday))
	assert.False(t, cal.AllowsWeekday(time.Friday))

	cfg := config.Defaults().Schedule
	cfg.Timezone = "Nowhere/Special"
	_, err = FromConfig(cfg)
	assert.Error(t, err)

	cfg = config.Defaults().Schedule
	cfg.Weekdays = []string{"funday"}
	_, err = FromConfig(cfg)
	assert.Error(t, err)
}
