package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/meetbot/internal/schedule"
)

// FallbackNote is stored on ledger entries created from an inferred slot.
const FallbackNote = "fallback_nl_booking_inferred_from_assistant_reply"

// Candidate is a slot inferred from free text when the model did not emit a
// BOOKED tag.
type Candidate struct {
	Slot    string
	Email   string
	Matcher string
}

// slotMatcher tries to find a slot in a reply.
type slotMatcher struct {
	name  string
	match func(f *Fallback, text string) (string, bool)
}

// Fallback infers bookings from natural language. Matchers run in priority
// order and the first hit wins.
type Fallback struct {
	cal      *schedule.Calendar
	matchers []slotMatcher
}

// NewFallback creates the natural-language extractor. Weekday names are
// limited to the calendar's business days.
func NewFallback(cal *schedule.Calendar) *Fallback {
	return &Fallback{
		cal: cal,
		matchers: []slotMatcher{
			{"iso", matchISO},
			{"date_and_time", matchDateAndTime},
			{"weekday", matchWeekday},
		},
	}
}

var (
	isoInText     = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[T\s](\d{1,2}:\d{2})`)
	dateInText    = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
	clockInText   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	ampmInText    = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	noonInText    = regexp.MustCompile(`\b(?:noon|midday)\b`)
	midnightText  = regexp.MustCompile(`\bmidnight\b`)
	weekdayInText = regexp.MustCompile(`\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	emailInText   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// Find returns the first slot any matcher infers from text.
func (f *Fallback) Find(text string) (Candidate, bool) {
	for _, m := range f.matchers {
		if slot, ok := m.match(f, text); ok {
			c := Candidate{Slot: slot, Matcher: m.name}
			c.Email = emailInText.FindString(text)
			return c, true
		}
	}
	return Candidate{}, false
}

func padHour(hm string) string {
	if h, m, ok := strings.Cut(hm, ":"); ok && len(h) == 1 {
		return "0" + h + ":" + m
	}
	return hm
}

func matchISO(_ *Fallback, text string) (string, bool) {
	m := isoInText.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1] + " " + padHour(m[2]), true
}

func matchDateAndTime(_ *Fallback, text string) (string, bool) {
	d := dateInText.FindStringSubmatch(text)
	t := clockInText.FindStringSubmatch(text)
	if d == nil || t == nil {
		return "", false
	}
	return d[1] + " " + padHour(t[1]+":"+t[2]), true
}

func matchWeekday(f *Fallback, text string) (string, bool) {
	lower := strings.ToLower(text)

	var wd time.Weekday
	found := false
	for _, m := range weekdayInText.FindAllStringSubmatch(lower, -1) {
		if d, ok := schedule.ParseWeekday(m[1]); ok && f.cal.AllowsWeekday(d) {
			wd, found = d, true
			break
		}
	}
	if !found {
		return "", false
	}

	hour, minute, ok := timeOfDay(lower)
	if !ok {
		return "", false
	}
	return f.cal.NextWeekday(wd, hour, minute)
}

// timeOfDay reads the first time expression, preferring 24-hour clock
// notation over am/pm, then noon and midnight.
func timeOfDay(lower string) (int, int, bool) {
	if m := clockInText.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if h < 24 && mm < 60 {
			return h, mm, true
		}
	}
	if m := ampmInText.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm := 0
		if m[2] != "" {
			mm, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || mm > 59 {
			return 0, 0, false
		}
		switch {
		case m[3] == "pm" && h != 12:
			h += 12
		case m[3] == "am" && h == 12:
			h = 0
		}
		return h, mm, true
	}
	if noonInText.MatchString(lower) {
		return 12, 0, true
	}
	if midnightText.MatchString(lower) {
		return 0, 0, true
	}
	return 0, 0, false
}

// ConfirmationSuffix is appended to a reply after an inferred booking.
func ConfirmationSuffix(slot, email string) string {
	if email != "" {
		return fmt.Sprintf("I have recorded that meeting for %s and will email a confirmation to %s.", slot, email)
	}
	return fmt.Sprintf("I have recorded that meeting for %s.", slot)
}
