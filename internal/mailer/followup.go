package mailer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/soyeahso/meetbot/internal/schedule"
)

const sendTimeout = 30 * time.Second

// Profile is what follow-up email says about the company.
type Profile struct {
	AssistantName string
	CompanyName   string
	Description   string
	Subject       string
}

// Followup turns call events into email. Sends run in the background so a
// slow mail provider never holds up a call turn.
type Followup struct {
	sender  Sender
	profile Profile
	log     *logging.Logger
	wg      sync.WaitGroup
}

// NewFollowup creates a Followup.
func NewFollowup(sender Sender, profile Profile, log *logging.Logger) *Followup {
	if profile.Subject == "" {
		profile.Subject = fmt.Sprintf("Information from %s", profile.CompanyName)
	}
	return &Followup{sender: sender, profile: profile, log: log.Sub("mailer")}
}

// Register subscribes to the send-info and booking events.
func (f *Followup) Register(hm *hooks.Manager) {
	hm.On(hooks.EventSendInfo, "mailer", f.onSendInfo)
	hm.On(hooks.EventBooking, "mailer", f.onBooking)
}

// Wait blocks until queued sends finish.
func (f *Followup) Wait() { f.wg.Wait() }

func (f *Followup) onSendInfo(_ context.Context, p hooks.Payload) error {
	to := p.String("email")
	if to == "" {
		f.log.Info().Str("callId", p.CallID()).Msg("information requested without an email address")
		return nil
	}
	f.dispatch(p.CallID(), InfoMessage(f.profile, to, p.String("notes")))
	return nil
}

func (f *Followup) onBooking(_ context.Context, p hooks.Payload) error {
	to := p.String("email")
	if to == "" {
		return nil
	}
	f.dispatch(p.CallID(), ConfirmationMessage(f.profile, to, p.String("name"), p.String("slot")))
	return nil
}

func (f *Followup) dispatch(callID string, msg Message) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := f.sender.Send(ctx, msg); err != nil {
			f.log.Error().Err(err).Str("callId", callID).Str("to", msg.To).Msg("follow-up email failed")
			return
		}
		f.log.Info().Str("callId", callID).Str("to", msg.To).Str("subject", msg.Subject).Msg("follow-up email sent")
	}()
}

// InfoMessage is the product information email.
func InfoMessage(p Profile, to, notes string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi,\n\nThanks for taking the time to speak with %s from %s today.", p.AssistantName, p.CompanyName)
	if desc := strings.TrimSpace(p.Description); desc != "" {
		b.WriteString(" Here is a short overview, as promised:\n\n")
		b.WriteString(desc)
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		fmt.Fprintf(&b, "\n\nYou mentioned: %s", notes)
	}
	fmt.Fprintf(&b, "\n\nReply to this email any time to set up a short meeting.\n\n%s\n", p.CompanyName)
	return Message{To: to, Subject: p.Subject, Body: b.String()}
}

// ConfirmationMessage confirms a booked meeting.
func ConfirmationMessage(p Profile, to, name, slot string) Message {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	body := fmt.Sprintf("%s,\n\nThis confirms your meeting with %s on %s.\n\nSee you then,\n%s\n",
		greeting, p.CompanyName, schedule.Format(slot), p.CompanyName)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Meeting confirmed: %s", schedule.Format(slot)),
		Body:    body,
	}
}
