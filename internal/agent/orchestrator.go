package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/intent"
	"github.com/soyeahso/meetbot/internal/ledger"
	"github.com/soyeahso/meetbot/internal/llm"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/soyeahso/meetbot/internal/metrics"
	"github.com/soyeahso/meetbot/internal/schedule"
	"github.com/soyeahso/meetbot/internal/session"
)

// Spoken fallbacks.
const (
	introFormat = "Hi there, this is %s calling from %s. May I borrow a minute to share how we help sales teams schedule more meetings?"

	PromptNoInput       = "I did not catch anything that time. Please try again for me."
	PromptNotUnderstood = "Apologies, I could not understand that. Please try again for me."
	PromptGlitch        = "I ran into a glitch thinking about that. Please try again for me."

	bookedFormat        = "I have recorded that meeting for %s."
	conflictFormat      = "I'm sorry, that time is no longer available. How about %s?"
	conflictNoAltText   = "I'm sorry, that time is no longer available. Is there another time that works for you?"
	persistFailedFormat = "I'm sorry, I was not able to save the meeting for %s in our calendar just now, so it is not confirmed yet. Our team will follow up to confirm it."
	fallbackTakenText   = "That time appears unavailable now. Let me check other times."
)

// Turn outcomes for metrics.
const (
	outcomeOK            = "ok"
	outcomeNoInput       = "no_input"
	outcomeTranscription = "transcription_error"
	outcomeCompletion    = "completion_error"
	outcomeEnded         = "ended"
)

// Config configures the orchestrator.
type Config struct {
	AssistantName       string
	CompanyName         string
	CompanyProfile      string
	Language            string
	HistoryLimit        int
	BatchSize           int
	RepairDays          int
	MinSpeechConfidence float64
	TurnTimeout         time.Duration
	MaxTokens           int
	Temperature         *float64
	// NaturalLanguageBooking enables inferring bookings from replies that
	// name a time without a BOOKED marker.
	NaturalLanguageBooking bool
}

// ConfigFrom derives orchestrator settings from the application config.
// profile is the company profile text (not a path).
func ConfigFrom(cfg *config.Config, profile string) Config {
	return Config{
		AssistantName:          cfg.Assistant.Name,
		CompanyName:            cfg.Assistant.CompanyName,
		CompanyProfile:         profile,
		Language:               cfg.Assistant.Language,
		HistoryLimit:           cfg.Session.HistoryLimit,
		BatchSize:              cfg.Schedule.BatchSize,
		RepairDays:             cfg.Schedule.RepairDays,
		MinSpeechConfidence:    cfg.Twilio.MinSpeechConfidence,
		TurnTimeout:            time.Duration(cfg.LLM.TurnTimeout) * time.Second,
		MaxTokens:              cfg.OpenAI.MaxTokens,
		Temperature:            cfg.OpenAI.Temperature,
		NaturalLanguageBooking: cfg.Fallback.Enabled(),
	}
}

// RecordingFetcher downloads a call recording for transcription.
type RecordingFetcher interface {
	FetchRecording(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// Deps are the collaborators of an Orchestrator. Completer, Ledger and
// Sessions are required.
type Deps struct {
	Ledger      *ledger.Ledger
	Sessions    *session.Store
	Completer   llm.Client
	Transcriber llm.Transcriber
	Recordings  RecordingFetcher
	Hooks       *hooks.Manager
	Metrics     *metrics.Metrics
}

// Reply is what the caller hears after a turn.
type Reply struct {
	Text      string `json:"text"`
	ShouldEnd bool   `json:"shouldEnd"`
	// Booked is the slot committed during this turn, if any.
	Booked string `json:"booked,omitempty"`
}

// Orchestrator drives each call turn: it keeps the session, asks the model for
// a reply, acts on the reply's intent markers and decides when the call ends.
type Orchestrator struct {
	cfg      Config
	deps     Deps
	cal      *schedule.Calendar
	fallback *intent.Fallback
	log      *logging.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config, deps Deps, log *logging.Logger) *Orchestrator {
	if cfg.HistoryLimit < 2 {
		cfg.HistoryLimit = 24
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 2
	}
	cal := deps.Ledger.Calendar()
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		cal:      cal,
		fallback: intent.NewFallback(cal),
		log:      log.Sub("agent"),
	}
}

// Sessions exposes the session store.
func (o *Orchestrator) Sessions() *session.Store { return o.deps.Sessions }

// Ledger exposes the meeting ledger.
func (o *Orchestrator) Ledger() *ledger.Ledger { return o.deps.Ledger }

// HandleCallStart resets any state for callID and returns the greeting. A
// reused call identifier starts over rather than resuming.
func (o *Orchestrator) HandleCallStart(ctx context.Context, callID string, meta domain.CallMeta) string {
	sess, release := o.deps.Sessions.Reset(callID)
	defer release()

	o.prime(sess)
	sess.CaptureNumbers(meta)

	greeting := fmt.Sprintf(introFormat, o.cfg.AssistantName, o.cfg.CompanyName)
	sess.Append(domain.RoleAssistant, greeting)

	o.deps.Metrics.SetSessions(o.deps.Sessions.Len())
	o.deps.Metrics.RecordCall("start", "")
	o.emit(ctx, hooks.EventCallStart, map[string]any{
		"callId":   callID,
		"prospect": sess.ProspectNumber,
		"caller":   sess.CallerNumber,
		"proposed": append([]string(nil), sess.ProposedSlots...),
	})

	o.log.Info().
		Str("callId", callID).
		Str("prospect", sess.ProspectNumber).
		Int("available", len(sess.AvailableSlots)).
		Msg("call started")
	return greeting
}

// prime installs the system prompt and the slot universe on a fresh session.
func (o *Orchestrator) prime(sess *session.CallSession) {
	sess.RefreshAvailable(o.deps.Ledger.Available(o.cal.LookaheadDays()))
	proposed := sess.EnsureProposed(o.cfg.BatchSize)
	sess.SetSystemPrompt(BuildSystemPrompt(PromptConfig{
		AssistantName:  o.cfg.AssistantName,
		CompanyName:    o.cfg.CompanyName,
		CompanyProfile: o.cfg.CompanyProfile,
		Timezone:       o.cal.Location().String(),
		Language:       o.cfg.Language,
		Now:            o.cal.Now(),
		ProposedSlots:  proposed,
	}))
}

// HandleRecordedTurn resolves the caller's words from the provider's speech
// result, falling back to transcribing the recording when recognition
// confidence is low, then handles the turn.
func (o *Orchestrator) HandleRecordedTurn(ctx context.Context, turn domain.InboundTurn) Reply {
	start := time.Now()
	text := strings.TrimSpace(turn.SpeechResult)

	lowConfidence := turn.Confidence != nil && *turn.Confidence < o.cfg.MinSpeechConfidence
	if (text == "" || lowConfidence) && turn.RecordingURL != "" && o.deps.Transcriber != nil && o.deps.Recordings != nil {
		transcript, err := o.transcribe(ctx, turn.RecordingURL)
		if err != nil {
			o.log.Warn().Err(err).Str("callId", turn.CallID).Msg("transcription failed")
			o.deps.Metrics.RecordError("transcription")
			o.deps.Metrics.RecordTurn(outcomeTranscription, time.Since(start))
			return Reply{Text: PromptNotUnderstood}
		}
		if transcript != "" {
			text = transcript
		}
	}

	return o.HandleInboundTurn(ctx, turn.CallID, text, turn.Meta)
}

func (o *Orchestrator) transcribe(ctx context.Context, url string) (string, error) {
	ctx, cancel := o.turnContext(ctx)
	defer cancel()

	body, filename, err := o.deps.Recordings.FetchRecording(ctx, url)
	if err != nil {
		return "", &domain.TranscriptionError{Provider: "recording", Err: err}
	}
	defer body.Close()

	text, err := o.deps.Transcriber.Transcribe(ctx, body, filename)
	if err != nil {
		return "", &domain.TranscriptionError{Provider: o.deps.Transcriber.Name(), Err: err}
	}
	return strings.TrimSpace(text), nil
}

func (o *Orchestrator) turnContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.TurnTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.TurnTimeout)
	}
	return context.WithCancel(ctx)
}

// HandleInboundTurn processes one caller utterance and returns the reply to
// speak and whether the call should end. Every failure below degrades to a
// spoken sentence; the call is never dropped because of a turn error.
func (o *Orchestrator) HandleInboundTurn(ctx context.Context, callID, utterance string, meta domain.CallMeta) Reply {
	start := time.Now()
	log := o.log.With("callId", callID)

	sess, created, release, ok := o.deps.Sessions.AcquireActive(callID)
	if !ok {
		// a late or repeated webhook for a call that already hung up
		log.Info().Msg("turn for ended call ignored")
		o.deps.Metrics.RecordTurn(outcomeEnded, time.Since(start))
		return Reply{ShouldEnd: true}
	}
	defer release()
	if created {
		// no call-start webhook was seen for this id
		o.prime(sess)
		o.deps.Metrics.SetSessions(o.deps.Sessions.Len())
	}
	sess.CaptureNumbers(meta)

	text := strings.TrimSpace(utterance)
	if text == "" {
		o.deps.Metrics.RecordTurn(outcomeNoInput, time.Since(start))
		return Reply{Text: PromptNoInput}
	}

	sess.Append(domain.RoleUser, text)
	sess.Turns++

	raw, err := o.complete(ctx, sess)
	if err != nil {
		log.Error().Err(err).Msg("completion failed")
		o.deps.Metrics.RecordError("completion")
		o.deps.Metrics.RecordTurn(outcomeCompletion, time.Since(start))
		return Reply{Text: PromptGlitch}
	}

	reply := o.processReply(ctx, sess, raw, log)

	sess.Append(domain.RoleAssistant, reply.Text)
	if sess.TrimHistory(o.cfg.HistoryLimit) {
		log.Debug().Int("limit", o.cfg.HistoryLimit).Msg("history trimmed")
	}

	o.emit(ctx, hooks.EventTurn, map[string]any{
		"callId": callID,
		"turn":   sess.Turns,
		"user":   text,
		"reply":  reply.Text,
		"end":    reply.ShouldEnd,
	})

	if reply.ShouldEnd {
		o.endLocked(ctx, sess, "completed")
	}

	log.Info().
		Int("turn", sess.Turns).
		Str("scheduled", sess.ScheduledSlot).
		Bool("end", reply.ShouldEnd).
		Dur("duration", time.Since(start)).
		Msg("turn handled")
	o.deps.Metrics.RecordTurn(outcomeOK, time.Since(start))
	return reply
}

func (o *Orchestrator) complete(ctx context.Context, sess *session.CallSession) (string, error) {
	ctx, cancel := o.turnContext(ctx)
	defer cancel()

	resp, err := o.deps.Completer.Complete(ctx, llm.CompletionRequest{
		Messages:    llm.MessagesFromTurns(sess.History),
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return "", &domain.CompletionError{Provider: o.deps.Completer.Name(), Err: err}
	}
	o.deps.Metrics.RecordTokens(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp.Content, nil
}

// processReply acts on the markers in a model reply and returns the text to
// speak.
func (o *Orchestrator) processReply(ctx context.Context, sess *session.CallSession, raw string, log *logging.Logger) Reply {
	res := intent.Parse(raw)
	replace := make(map[int]string)
	var out Reply

	for i, tag := range res.Tags {
		o.deps.Metrics.RecordIntent(string(tag.Kind), tag.Valid())
		if !tag.Known() {
			log.Warn().Str("tag", string(tag.Kind)).Msg("unknown marker stripped")
			continue
		}
		if tag.Err != nil {
			var perr *domain.ParseError
			if errors.As(tag.Err, &perr) {
				log.Warn().Str("tag", perr.Tag).Str("payload", perr.Payload).Err(perr.Err).Msg("malformed marker discarded")
			} else {
				log.Warn().Str("tag", string(tag.Kind)).Err(tag.Err).Msg("malformed marker discarded")
			}
			continue
		}

		switch tag.Kind {
		case intent.KindBooked:
			if sess.MeetingLogged {
				log.Info().Str("slot", tag.Booking.Slot).Str("scheduled", sess.ScheduledSlot).Msg("meeting already logged for call, ignoring marker")
				continue
			}
			sentence, slot := o.bookFromTag(ctx, sess, tag.Booking, log)
			replace[i] = sentence
			if slot != "" {
				out.Booked = slot
			}

		case intent.KindCallback:
			if sess.Disposition == domain.DispositionNone {
				sess.Disposition = domain.DispositionCallback
			}
			log.Info().Str("when", tag.Callback.When).Msg("callback requested")
			o.emit(ctx, hooks.EventCallback, map[string]any{
				"callId":   sess.CallID,
				"prospect": sess.ProspectNumber,
				"when":     tag.Callback.When,
				"timezone": tag.Callback.Timezone,
				"notes":    tag.Callback.Notes,
			})

		case intent.KindSendInfo:
			if sess.Disposition == domain.DispositionNone {
				sess.Disposition = domain.DispositionSendInfo
			}
			log.Info().Str("email", tag.SendInfo.Email).Msg("information requested")
			o.emit(ctx, hooks.EventSendInfo, map[string]any{
				"callId":   sess.CallID,
				"prospect": sess.ProspectNumber,
				"email":    tag.SendInfo.Email,
				"notes":    tag.SendInfo.Notes,
			})
		}
	}

	text := res.Render(replace)

	if o.cfg.NaturalLanguageBooking && sess.ScheduledSlot == "" && !res.Has(intent.KindBooked) {
		if suffix, slot := o.bookFromText(ctx, sess, raw, log); suffix != "" {
			text = strings.TrimSpace(text + "\n" + suffix)
			if slot != "" {
				out.Booked = slot
			}
		}
	}

	end := res.Has(intent.KindEndCall)
	if end && !o.hasWrapUp(sess) {
		log.Info().Msg("end marker without disposition stripped")
		end = false
	}

	out.Text = text
	out.ShouldEnd = end
	return out
}

// hasWrapUp reports whether the call has reached a disposition that allows it
// to end. Markers of this reply have already been applied to the session, so
// a refused booking does not count.
func (o *Orchestrator) hasWrapUp(sess *session.CallSession) bool {
	return sess.ScheduledSlot != "" || sess.Disposition != domain.DispositionNone
}

// bookFromTag commits a BOOKED marker. It returns the sentence that replaces
// the marker and the committed slot, if any.
func (o *Orchestrator) bookFromTag(ctx context.Context, sess *session.CallSession, b *intent.Booking, log *logging.Logger) (string, string) {
	slot := b.Slot
	if !o.deps.Ledger.IsAvailable(slot) {
		if repaired, ok := o.cal.RepairSameWeekday(slot, o.deps.Ledger.ListBookedSlots(), o.cfg.RepairDays); ok {
			log.Info().Str("requested", slot).Str("repaired", repaired).Msg("slot repaired to next same weekday")
			slot = repaired
		}
	}

	entry := domain.MeetingEntry{
		Slot:        slot,
		CallID:      sess.CallID,
		Name:        b.Name,
		Email:       b.Email,
		Phone:       b.Phone,
		Notes:       b.Notes,
		Timezone:    b.Timezone,
		DurationMin: b.DurationMin,
		Source:      domain.SourceTag,
	}
	o.enrich(sess, &entry)

	saved, err := o.deps.Ledger.BookSlot(entry)
	if err == nil {
		o.committed(ctx, sess, saved, metrics.PathTag)
		return fmt.Sprintf(bookedFormat, saved.Slot), saved.Slot
	}

	var ioErr *domain.LedgerIOError
	if errors.As(err, &ioErr) {
		// keep the outcome in memory so the call can wrap up truthfully
		sess.RegisterScheduled(slot)
		o.deps.Metrics.RecordError("ledger")
		log.Error().Err(err).Str("slot", slot).Msg("booking could not be persisted")
		return fmt.Sprintf(persistFailedFormat, slot), ""
	}

	o.deps.Metrics.RecordConflict()
	log.Info().Err(err).Str("slot", slot).Msg("booking refused")
	o.emit(ctx, hooks.EventBookingConflict, map[string]any{
		"callId": sess.CallID,
		"slot":   slot,
		"reason": err.Error(),
	})
	return o.reoffer(sess), ""
}

// reoffer refreshes the session's slots from the ledger and proposes the next
// batch.
func (o *Orchestrator) reoffer(sess *session.CallSession) string {
	sess.RefreshAvailable(o.deps.Ledger.Available(o.cal.LookaheadDays()))
	alts := sess.EnsureProposed(o.cfg.BatchSize)
	if len(alts) == 0 {
		return conflictNoAltText
	}
	return fmt.Sprintf(conflictFormat, schedule.FormatList(alts))
}

// bookFromText infers a booking from a reply with no BOOKED marker. It
// returns a sentence to append, or "" when nothing was inferred.
func (o *Orchestrator) bookFromText(ctx context.Context, sess *session.CallSession, raw string, log *logging.Logger) (string, string) {
	cand, ok := o.fallback.Find(raw)
	if !ok {
		return "", ""
	}
	if !o.deps.Ledger.IsAvailable(cand.Slot) {
		log.Debug().Str("slot", cand.Slot).Str("matcher", cand.Matcher).Msg("inferred slot not available")
		return "", ""
	}

	entry := domain.MeetingEntry{
		Slot:   cand.Slot,
		CallID: sess.CallID,
		Email:  cand.Email,
		Notes:  intent.FallbackNote,
		Source: domain.SourceFallback,
	}
	o.enrich(sess, &entry)

	saved, err := o.deps.Ledger.BookSlot(entry)
	if err != nil {
		var ioErr *domain.LedgerIOError
		if errors.As(err, &ioErr) {
			o.deps.Metrics.RecordError("ledger")
			log.Error().Err(err).Str("slot", cand.Slot).Msg("inferred booking could not be persisted")
			return fmt.Sprintf(persistFailedFormat, cand.Slot), ""
		}
		o.deps.Metrics.RecordConflict()
		log.Info().Err(err).Str("slot", cand.Slot).Msg("inferred booking refused")
		sess.RefreshAvailable(o.deps.Ledger.Available(o.cal.LookaheadDays()))
		return fallbackTakenText, ""
	}

	log.Info().Str("slot", saved.Slot).Str("matcher", cand.Matcher).Msg("booking inferred from reply")
	o.committed(ctx, sess, saved, metrics.PathFallback)
	return intent.ConfirmationSuffix(saved.Slot, saved.Email), saved.Slot
}

// enrich fills booking fields the model left out.
func (o *Orchestrator) enrich(sess *session.CallSession, entry *domain.MeetingEntry) {
	if entry.Phone == "" {
		entry.Phone = sess.ProspectNumber
	}
	if entry.Name == "" {
		if name, ok := intent.ExtractName(sess.History); ok {
			entry.Name = name
		} else {
			entry.PendingNameExtraction = true
		}
	}
	if entry.Timezone == "" {
		entry.Timezone = o.cal.Location().String()
	}
}

func (o *Orchestrator) committed(ctx context.Context, sess *session.CallSession, saved domain.MeetingEntry, path string) {
	sess.RegisterScheduled(saved.Slot)
	sess.MeetingLogged = true
	o.deps.Metrics.RecordBooking(path)
	o.emit(ctx, hooks.EventBooking, map[string]any{
		"callId": sess.CallID,
		"slot":   saved.Slot,
		"name":   saved.Name,
		"email":  saved.Email,
		"phone":  saved.Phone,
		"path":   path,
		"id":     saved.ID,
	})
}

// HandleCallEnded discards the session when the provider reports the call
// finished. It reports whether a session was live. The call is marked ended
// either way so later turns for it are refused.
func (o *Orchestrator) HandleCallEnded(ctx context.Context, callID, reason string) bool {
	snap, ok := o.deps.Sessions.Snapshot(callID)
	if !ok {
		o.deps.Sessions.Discard(callID)
		return false
	}
	if !o.deps.Sessions.Discard(callID) {
		return false
	}
	o.ended(ctx, callID, snap.Disposition, reason)
	return true
}

// HandleReaped records a session dropped by the idle janitor.
func (o *Orchestrator) HandleReaped(callID string) {
	o.ended(context.Background(), callID, domain.DispositionNone, "idle")
}

// endLocked discards a session whose lock the caller holds.
func (o *Orchestrator) endLocked(ctx context.Context, sess *session.CallSession, reason string) {
	o.deps.Sessions.Discard(sess.CallID)
	o.ended(ctx, sess.CallID, sess.Disposition, reason)
}

func (o *Orchestrator) ended(ctx context.Context, callID string, disposition domain.Disposition, reason string) {
	o.deps.Metrics.SetSessions(o.deps.Sessions.Len())
	o.deps.Metrics.RecordCall("end", string(disposition))
	o.emit(ctx, hooks.EventCallEnd, map[string]any{
		"callId":      callID,
		"disposition": string(disposition),
		"reason":      reason,
	})
	o.log.Info().Str("callId", callID).Str("disposition", string(disposition)).Str("reason", reason).Msg("call ended")
}

func (o *Orchestrator) emit(ctx context.Context, event string, data map[string]any) {
	if o.deps.Hooks == nil {
		return
	}
	o.deps.Hooks.Emit(ctx, event, data)
}
