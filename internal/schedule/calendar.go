// Package schedule computes bookable meeting slots within business hours.
package schedule

import (
	_ "time/tzdata" // fixed business timezone must resolve on hosts without zoneinfo

	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/domain"
)

// Calendar enumerates and validates slots for a fixed timezone, a set of
// business weekdays, and an inclusive range of on-the-hour start times.
type Calendar struct {
	loc       *time.Location
	weekdays  map[time.Weekday]bool
	firstHour int
	lastHour  int
	lookahead int
	now       func() time.Time
}

// Options configures a Calendar. Zero values fall back to the defaults.
type Options struct {
	Location      *time.Location
	Weekdays      []time.Weekday
	FirstHour     int
	LastHour      int
	LookaheadDays int
	Now           func() time.Time
}

// New creates a Calendar from options.
func New(opts Options) *Calendar {
	c := &Calendar{
		loc:       opts.Location,
		weekdays:  make(map[time.Weekday]bool),
		firstHour: opts.FirstHour,
		lastHour:  opts.LastHour,
		lookahead: opts.LookaheadDays,
		now:       opts.Now,
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.lastHour == 0 && c.firstHour == 0 {
		c.firstHour, c.lastHour = 8, 15
	}
	if c.lookahead <= 0 {
		c.lookahead = 14
	}
	days := opts.Weekdays
	if len(days) == 0 {
		days = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
	}
	for _, d := range days {
		c.weekdays[d] = true
	}
	return c
}

// FromConfig builds a Calendar from the schedule section of the config.
func FromConfig(cfg config.ScheduleConfig) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	var days []time.Weekday
	for _, name := range cfg.Weekdays {
		wd, ok := ParseWeekday(name)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, wd)
	}
	return New(Options{
		Location:      loc,
		Weekdays:      days,
		FirstHour:     cfg.FirstHour,
		LastHour:      cfg.LastHour,
		LookaheadDays: cfg.LookaheadDays,
	}), nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps an English weekday name to a time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return wd, ok
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// LookaheadDays returns the configured default window.
func (c *Calendar) LookaheadDays() int { return c.lookahead }

// Now returns the current instant in the calendar's timezone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// AllowsWeekday reports whether meetings may be booked on the weekday.
func (c *Calendar) AllowsWeekday(wd time.Weekday) bool { return c.weekdays[wd] }

// GenerateAvailable returns, in chronological order, every on-the-hour slot
// on an allowed weekday within the next lookaheadDays days (today counts as
// day zero) that starts strictly after now and is not in booked.
// A non-positive lookaheadDays uses the calendar default.
func (c *Calendar) GenerateAvailable(booked map[string]bool, lookaheadDays int) []string {
	if lookaheadDays <= 0 {
		lookaheadDays = c.lookahead
	}
	now := c.Now()
	var slots []string
	for offset := 0; offset < lookaheadDays; offset++ {
		day := now.AddDate(0, 0, offset)
		if !c.weekdays[day.Weekday()] {
			continue
		}
		for hour := c.firstHour; hour <= c.lastHour; hour++ {
			t := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, c.loc)
			if !t.After(now) {
				continue
			}
			slot := t.Format(domain.SlotLayout)
			if booked[slot] {
				continue
			}
			slots = append(slots, slot)
		}
	}
	return slots
}

// ParseSlot parses a slot string in the calendar's timezone.
func (c *Calendar) ParseSlot(slot string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.SlotLayout, strings.TrimSpace(slot), c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidSlot, slot)
	}
	return t, nil
}

// Check validates a slot's format, future-ness and business window without
// consulting bookings. The returned error wraps domain.ErrInvalidSlot.
func (c *Calendar) Check(slot string) error {
	t, err := c.ParseSlot(slot)
	if err != nil {
		return err
	}
	if !t.After(c.Now()) {
		return fmt.Errorf("%w: %s is in the past", domain.ErrInvalidSlot, slot)
	}
	if !c.weekdays[t.Weekday()] {
		return fmt.Errorf("%w: %s falls on %s", domain.ErrInvalidSlot, slot, t.Weekday())
	}
	if t.Hour() < c.firstHour || t.Hour() > c.lastHour {
		return fmt.Errorf("%w: %s is outside %02d:00-%02d:00", domain.ErrInvalidSlot, slot, c.firstHour, c.lastHour)
	}
	return nil
}

// IsAvailable re-validates the slot and confirms it is present in a freshly
// generated availability list for the given bookings.
func (c *Calendar) IsAvailable(slot string, booked map[string]bool, lookaheadDays int) bool {
	if c.Check(slot) != nil {
		return false
	}
	for _, s := range c.GenerateAvailable(booked, lookaheadDays) {
		if s == slot {
			return true
		}
	}
	return false
}

// RepairSameWeekday finds the first available occurrence of the slot's
// weekday and time of day in the days after now. The slot's own date is
// ignored, so stale dates from the model still repair.
func (c *Calendar) RepairSameWeekday(slot string, booked map[string]bool, days int) (string, bool) {
	t, err := c.ParseSlot(slot)
	if err != nil {
		return "", false
	}
	if days <= 0 {
		days = c.lookahead
	}
	now := c.Now()
	for delta := 1; delta <= days; delta++ {
		day := now.AddDate(0, 0, delta)
		if day.Weekday() != t.Weekday() {
			continue
		}
		candidate := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, c.loc)
		s := candidate.Format(domain.SlotLayout)
		if c.IsAvailable(s, booked, 0) {
			return s, true
		}
	}
	return "", false
}

// NextWeekday resolves a weekday and time of day to its nearest future
// occurrence within the lookahead window.
func (c *Calendar) NextWeekday(wd time.Weekday, hour, minute int) (string, bool) {
	now := c.Now()
	for offset := 0; offset < c.lookahead; offset++ {
		day := now.AddDate(0, 0, offset)
		if day.Weekday() != wd {
			continue
		}
		t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, c.loc)
		if t.After(now) {
			return t.Format(domain.SlotLayout), true
		}
	}
	return "", false
}

// Format renders a slot for speech, e.g. "Tuesday, November 18 at 12:00 PM".
// Unparseable input is returned unchanged.
func Format(slot string) string {
	t, err := time.Parse(domain.SlotLayout, strings.TrimSpace(slot))
	if err != nil {
		return slot
	}
	return t.Format("Monday, January 02 at 03:04 PM")
}

// FormatList renders slots for speech joined with "or".
func FormatList(slots []string) string {
	formatted := make([]string, len(slots))
	for i, s := range slots {
		formatted[i] = Format(s)
	}
	return strings.Join(formatted, " or ")
}
