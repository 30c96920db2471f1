// Package intent extracts disposition tags from model replies.
//
// The model is instructed to append markers such as
//
//	[[BOOKED {"name":"Dana","datetime_iso":"2025-11-18T12:00"}]]
//	[[CALLBACK_NEEDED {"when":"next week"}]]
//	[[SEND_INFO {"email":"d@x.com"}]]
//	[[END_CALL]]
//
// Parse finds every marker, decodes its payload, and reports each occurrence
// as a Tag that is either valid or malformed. Markers are never part of the
// spoken text, whatever their parse result.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/soyeahso/meetbot/internal/domain"
)

// Kind names a tag.
type Kind string

const (
	KindBooked   Kind = "BOOKED"
	KindCallback Kind = "CALLBACK_NEEDED"
	KindSendInfo Kind = "SEND_INFO"
	KindEndCall  Kind = "END_CALL"
)

// Booking is a decoded BOOKED payload. Slot is in domain.SlotLayout form
// when the payload carried a resolvable date-time.
type Booking struct {
	Slot        string
	Name        string
	Email       string
	Phone       string
	Timezone    string
	DurationMin int
	Notes       string
}

// Callback is a decoded CALLBACK_NEEDED payload.
type Callback struct {
	When     string `json:"when"`
	Timezone string `json:"timezone"`
	Notes    string `json:"notes"`
}

// SendInfo is a decoded SEND_INFO payload.
type SendInfo struct {
	Email string `json:"email"`
	Notes string `json:"notes"`
}

// Tag is one marker occurrence. Exactly one of Err, Booking, Callback,
// SendInfo is set for payload-bearing kinds; END_CALL carries nothing.
// Unknown marker names are reported with Known() false.
type Tag struct {
	Kind    Kind
	Payload string
	Start   int
	End     int
	Err     error

	Booking  *Booking
	Callback *Callback
	SendInfo *SendInfo
}

// Known reports whether the tag name is part of the grammar.
func (t Tag) Known() bool {
	switch t.Kind {
	case KindBooked, KindCallback, KindSendInfo, KindEndCall:
		return true
	}
	return false
}

// Valid reports whether the tag is known and its payload decoded.
func (t Tag) Valid() bool { return t.Known() && t.Err == nil }

// Result holds every tag found in a reply plus the reply itself.
type Result struct {
	Reply string
	Tags  []Tag
}

// tagPattern matches [[NAME]] and [[NAME payload]]. The payload runs to the
// first closing brackets and is expected to be a JSON object.
var tagPattern = regexp.MustCompile(`(?s)\[\[\s*([A-Za-z_]+)\s*(.*?)\s*\]\]`)

// strayPattern catches bracket markup the tag grammar did not consume, such
// as a marker cut off at the end of the reply or orphaned closing brackets.
var strayPattern = regexp.MustCompile(`(?s)\[\[.*?\]\]|\[\[[^\]]*$|\]\]`)

var spacePattern = regexp.MustCompile(`[ \t]{2,}`)

// Parse scans a reply for tags.
func Parse(reply string) Result {
	res := Result{Reply: reply}
	for _, loc := range tagPattern.FindAllStringSubmatchIndex(reply, -1) {
		tag := Tag{
			Kind:  Kind(strings.ToUpper(reply[loc[2]:loc[3]])),
			Start: loc[0],
			End:   loc[1],
		}
		tag.Payload = reply[loc[4]:loc[5]]
		decode(&tag)
		res.Tags = append(res.Tags, tag)
	}
	return res
}

func decode(tag *Tag) {
	switch tag.Kind {
	case KindBooked:
		b, err := decodeBooking(tag.Payload)
		if err != nil {
			tag.Err = &domain.ParseError{Tag: string(tag.Kind), Payload: tag.Payload, Err: err}
			return
		}
		tag.Booking = b
	case KindCallback:
		var c Callback
		if err := decodeOptional(tag.Payload, &c); err != nil {
			tag.Err = &domain.ParseError{Tag: string(tag.Kind), Payload: tag.Payload, Err: err}
			return
		}
		tag.Callback = &c
	case KindSendInfo:
		var s SendInfo
		if err := decodeOptional(tag.Payload, &s); err != nil {
			tag.Err = &domain.ParseError{Tag: string(tag.Kind), Payload: tag.Payload, Err: err}
			return
		}
		tag.SendInfo = &s
	case KindEndCall:
	default:
		tag.Err = &domain.ParseError{Tag: string(tag.Kind), Payload: tag.Payload, Err: errors.New("unknown tag")}
	}
}

// decodeOptional accepts an absent payload as the zero value.
func decodeOptional(payload string, v any) error {
	if payload == "" {
		return nil
	}
	return json.Unmarshal([]byte(payload), v)
}

type bookedPayload struct {
	Slot        string `json:"slot"`
	DatetimeISO string `json:"datetime_iso"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Timezone    string `json:"timezone"`
	DurationMin any    `json:"duration_min"`
	Notes       string `json:"notes"`
}

func decodeBooking(payload string) (*Booking, error) {
	if payload == "" {
		return nil, errors.New("missing payload")
	}
	var p bookedPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, err
	}

	var slot string
	switch {
	case p.Slot != "":
		slot = strings.TrimSpace(p.Slot)
		if norm, ok := NormalizeDateTime(slot); ok {
			slot = norm
		}
	case p.DatetimeISO != "":
		norm, ok := NormalizeDateTime(p.DatetimeISO)
		if !ok {
			return nil, fmt.Errorf("unresolvable datetime_iso %q", p.DatetimeISO)
		}
		slot = norm
	default:
		return nil, errors.New("missing slot or datetime_iso")
	}

	return &Booking{
		Slot:        slot,
		Name:        strings.TrimSpace(p.Name),
		Email:       strings.TrimSpace(p.Email),
		Phone:       strings.TrimSpace(p.Phone),
		Timezone:    p.Timezone,
		DurationMin: toInt(p.DurationMin),
		Notes:       p.Notes,
	}, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	}
	return 0
}

// Has reports whether any valid tag of the kind is present.
func (r Result) Has(kind Kind) bool {
	for _, t := range r.Tags {
		if t.Kind == kind && t.Err == nil {
			return true
		}
	}
	return false
}

// Render rebuilds the reply with every tag removed. Tags whose index appears
// in replace are substituted with the given sentence instead.
func (r Result) Render(replace map[int]string) string {
	var b strings.Builder
	prev := 0
	for i, t := range r.Tags {
		b.WriteString(r.Reply[prev:t.Start])
		if s, ok := replace[i]; ok && s != "" {
			b.WriteString(s)
		}
		prev = t.End
	}
	b.WriteString(r.Reply[prev:])
	return Clean(b.String())
}

// Text is the reply with every tag stripped.
func (r Result) Text() string { return r.Render(nil) }

// Clean removes any remaining bracket markup and tidies whitespace left
// behind by removed tags.
func Clean(s string) string {
	s = strayPattern.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
