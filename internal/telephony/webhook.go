package telephony

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/soyeahso/meetbot/internal/domain"
)

// UnknownCallID stands in for a webhook that carried no call identifier.
const UnknownCallID = "unknown-call"

// CallID returns the call identifier of a webhook form.
func CallID(form url.Values) string {
	if id := strings.TrimSpace(form.Get("CallSid")); id != "" {
		return id
	}
	return UnknownCallID
}

// ParseCallMeta reads the call envelope shared by every voice webhook.
func ParseCallMeta(form url.Values) domain.CallMeta {
	return domain.CallMeta{
		AccountSID: form.Get("AccountSid"),
		From:       form.Get("From"),
		To:         form.Get("To"),
		CallStatus: form.Get("CallStatus"),
		Direction:  form.Get("Direction"),
	}
}

// ParseTurn reads a gathered utterance. An unparseable confidence is treated
// as absent.
func ParseTurn(form url.Values) domain.InboundTurn {
	turn := domain.InboundTurn{
		CallID:       CallID(form),
		SpeechResult: strings.TrimSpace(form.Get("SpeechResult")),
		RecordingURL: form.Get("RecordingUrl"),
		Meta:         ParseCallMeta(form),
	}
	if raw := form.Get("Confidence"); raw != "" {
		if c, err := strconv.ParseFloat(raw, 64); err == nil {
			turn.Confidence = &c
		}
	}
	return turn
}

// StatusEvent is a call progress callback.
type StatusEvent struct {
	CallID   string
	Status   string
	Duration int
	Meta     domain.CallMeta
}

// ParseStatus reads a status callback form.
func ParseStatus(form url.Values) StatusEvent {
	ev := StatusEvent{
		CallID: CallID(form),
		Status: strings.ToLower(form.Get("CallStatus")),
		Meta:   ParseCallMeta(form),
	}
	ev.Duration, _ = strconv.Atoi(form.Get("CallDuration"))
	return ev
}

// Terminal reports whether the call has finished.
func (e StatusEvent) Terminal() bool {
	switch e.Status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}
