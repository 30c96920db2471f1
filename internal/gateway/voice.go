package gateway

import (
	"net/http"

	"github.com/soyeahso/meetbot/internal/telephony"
)

// Voice webhook paths, relative to the public base URL.
const (
	VoicePath       = "/voice"
	VoiceTurnPath   = "/voice/turn"
	VoiceStatusPath = "/voice/status"
)

func (s *Server) responder(r *http.Request) *telephony.Responder {
	return telephony.NewResponder(s.cfg.Assistant.Voice, s.cfg.Assistant.Language, s.publicURL(r, VoiceTurnPath))
}

// handleVoiceStart answers a newly connected call with the greeting.
func (s *Server) handleVoiceStart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	callID := telephony.CallID(r.PostForm)
	greeting := s.orch.HandleCallStart(r.Context(), callID, telephony.ParseCallMeta(r.PostForm))

	doc, err := s.responder(r).RenderGreeting(greeting)
	if err != nil {
		s.log.Error().Err(err).Str("callId", callID).Msg("rendering greeting")
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	writeTwiML(w, doc)
}

// handleVoiceTurn answers one gathered utterance.
func (s *Server) handleVoiceTurn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	turn := telephony.ParseTurn(r.PostForm)
	reply := s.orch.HandleRecordedTurn(r.Context(), turn)

	doc, err := s.responder(r).RenderTurn(reply.Text, reply.ShouldEnd)
	if err != nil {
		s.log.Error().Err(err).Str("callId", turn.CallID).Msg("rendering turn")
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	writeTwiML(w, doc)
}

// handleVoiceStatus records call progress and drops the session once the
// provider reports the call finished.
func (s *Server) handleVoiceStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	ev := telephony.ParseStatus(r.PostForm)
	s.log.Debug().Str("callId", ev.CallID).Str("status", ev.Status).Int("duration", ev.Duration).Msg("call status")

	if s.callLog != nil {
		if err := s.callLog.RecordStatus(ev.CallID, ev.Meta); err != nil {
			s.log.Warn().Err(err).Str("callId", ev.CallID).Msg("recording call status")
		}
	}
	if ev.Terminal() {
		s.orch.HandleCallEnded(r.Context(), ev.CallID, ev.Status)
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
