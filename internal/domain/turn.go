package domain

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a call's conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CallMeta is the telephony metadata delivered with provider webhooks.
type CallMeta struct {
	AccountSID string `json:"accountSid,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	CallStatus string `json:"callStatus,omitempty"`
	Direction  string `json:"direction,omitempty"`
}

// InboundTurn is one prospect utterance as reported by the telephony
// provider. Confidence is nil when the provider did not report one.
type InboundTurn struct {
	CallID       string
	SpeechResult string
	Confidence   *float64
	RecordingURL string
	Meta         CallMeta
}

// Disposition is the wrap-up outcome a call reached.
type Disposition string

const (
	DispositionNone     Disposition = ""
	DispositionBooked   Disposition = "booked"
	DispositionCallback Disposition = "callback"
	DispositionSendInfo Disposition = "send_info"
)
