// Package telephony adapts the voice provider: it renders TwiML responses,
// places outbound calls, reads webhook forms and downloads recordings.
package telephony

import (
	"fmt"
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

// GoodbyeText is spoken after the final reply of a call.
const GoodbyeText = "Thanks for your time today. Goodbye!"

// StillHereText re-opens the microphone when a reply is empty.
const StillHereText = "I am still here. Let us pick up where we left off."

const (
	defaultVoice    = "alice"
	defaultLanguage = "en-US"

	gatherTimeoutSeconds = 5
	speechModel          = "experimental_conversations"
	greetingPause        = 1.0
	goodbyePause         = 0.5
)

// Responder renders voice responses. ActionURL is where the provider posts
// each gathered utterance.
type Responder struct {
	Voice     string
	Language  string
	ActionURL string
}

// NewResponder creates a Responder, defaulting the voice and language.
func NewResponder(voice, language, actionURL string) *Responder {
	if voice == "" {
		voice = defaultVoice
	}
	if language == "" {
		language = defaultLanguage
	}
	return &Responder{Voice: voice, Language: language, ActionURL: actionURL}
}

// RenderGreeting speaks the intro after a short pause with barge-in
// disabled, then listens for the first utterance.
func (r *Responder) RenderGreeting(text string) (string, error) {
	elems := []twiml.Element{
		&twiml.VoicePause{Length: formatSeconds(greetingPause)},
		r.gather(text, false),
	}
	return render(elems)
}

// RenderTurn speaks a reply. If end is set the call says goodbye and hangs
// up; otherwise the reply is spoken inside a gather that re-opens the
// microphone.
func (r *Responder) RenderTurn(text string, end bool) (string, error) {
	if end {
		return r.RenderGoodbye(text)
	}
	if text == "" {
		text = StillHereText
	}
	return render([]twiml.Element{r.gather(text, true)})
}

// RenderGoodbye speaks an optional last reply, pauses, says goodbye and
// hangs up.
func (r *Responder) RenderGoodbye(text string) (string, error) {
	var elems []twiml.Element
	if text != "" {
		elems = append(elems, r.say(text))
	}
	elems = append(elems,
		&twiml.VoicePause{Length: formatSeconds(goodbyePause)},
		r.say(GoodbyeText),
		&twiml.VoiceHangup{},
	)
	return render(elems)
}

func (r *Responder) say(text string) *twiml.VoiceSay {
	return &twiml.VoiceSay{Message: text, Voice: r.Voice, Language: r.Language}
}

func (r *Responder) gather(prompt string, bargeIn bool) *twiml.VoiceGather {
	g := &twiml.VoiceGather{
		Input:         "speech",
		Action:        r.ActionURL,
		Method:        "POST",
		Timeout:       strconv.Itoa(gatherTimeoutSeconds),
		SpeechTimeout: "auto",
		Language:      r.Language,
		BargeIn:       strconv.FormatBool(bargeIn),
		SpeechModel:   speechModel,
		Enhanced:      "true",
	}
	if prompt != "" {
		g.InnerElements = []twiml.Element{r.say(prompt)}
	}
	return g
}

func render(elems []twiml.Element) (string, error) {
	out, err := twiml.Voice(elems)
	if err != nil {
		return "", fmt.Errorf("rendering twiml: %w", err)
	}
	return out, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
