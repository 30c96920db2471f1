package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/schedule"
)

const (
	dialTimeout    = 15 * time.Second
	maxSlotDays    = 60
	defaultCallLim = 50
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+VoicePath, s.requireSignature(s.handleVoiceStart))
	mux.HandleFunc("POST "+VoiceTurnPath, s.requireSignature(s.handleVoiceTurn))
	mux.HandleFunc("POST "+VoiceStatusPath, s.requireSignature(s.handleVoiceStatus))

	mux.HandleFunc("POST /calls", s.requireBearer(s.handleDial))
	mux.HandleFunc("GET /calls", s.requireBearer(s.handleCalls))
	mux.HandleFunc("GET /sessions", s.requireBearer(s.handleSessions))
	mux.HandleFunc("GET /meetings", s.requireBearer(s.handleMeetings))
	mux.HandleFunc("GET /slots", s.handleSlots)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/monitor", s.handleMonitor)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up the monitor RPC methods.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("sessions.list", s.rpcSessions)
	s.Handle("slots.list", s.rpcSlots)
	s.Handle("meetings.list", s.rpcMeetings)
	s.Handle("calls.recent", s.rpcCalls)
}

// SlotView is an open slot with its spoken form.
type SlotView struct {
	Slot   string `json:"slot"`
	Spoken string `json:"spoken"`
}

// DialRequest is the body of POST /calls.
type DialRequest struct {
	To string `json:"to"`
}

func (s *Server) slotViews(days int) []SlotView {
	slots := s.orch.Ledger().Available(days)
	out := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		out = append(out, SlotView{Slot: slot, Spoken: schedule.Format(slot)})
	}
	return out
}

// parseDays reads the lookahead window; zero uses the calendar default.
func parseDays(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxSlotDays {
		return 0, errors.New("days must be between 1 and 60")
	}
	return n, nil
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": s.slotViews(days)})
}

func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	entries, err := s.orch.Ledger().Entries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.MeetingEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"meetings": entries})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.orch.Sessions().List()})
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if s.callLog == nil {
		writeError(w, http.StatusServiceUnavailable, "call log not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	calls, err := s.callLog.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": calls})
}

// handleDial places an outbound call whose answer webhook points back at
// this server.
func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	if s.dialer == nil {
		writeError(w, http.StatusServiceUnavailable, "dialing not configured")
		return
	}
	var req DialRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dialTimeout)
	defer cancel()

	callID, err := s.dialer.Dial(ctx, req.To, s.publicURL(r, VoicePath))
	if err != nil {
		s.log.Error().Err(err).Str("to", req.To).Msg("dial failed")
		var te *domain.TelephonyError
		if errors.As(err, &te) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info().Str("callId", callID).Str("to", req.To).Msg("outbound call placed")
	writeJSON(w, http.StatusAccepted, map[string]string{"callId": callID, "to": req.To})
}

// Monitor RPC handlers

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:      "ok",
		Version:     s.version,
		ActiveCalls: s.orch.Sessions().Len(),
		Monitors:    s.clients.Count(),
	})
}

func (s *Server) rpcSessions(rc *RequestContext) {
	rc.Respond(map[string]any{"sessions": s.orch.Sessions().List()})
}

type slotsParams struct {
	Days int `json:"days,omitempty"`
}

func (s *Server) rpcSlots(rc *RequestContext) {
	var p slotsParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Days < 0 || p.Days > maxSlotDays {
		rc.RespondError(CodeInvalidParams, "days must be between 1 and 60")
		return
	}
	rc.Respond(map[string]any{"slots": s.slotViews(p.Days)})
}

func (s *Server) rpcMeetings(rc *RequestContext) {
	entries, err := s.orch.Ledger().Entries()
	if err != nil {
		rc.RespondError(CodeLedger, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.MeetingEntry{}
	}
	rc.Respond(map[string]any{"meetings": entries})
}

type callsParams struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Server) rpcCalls(rc *RequestContext) {
	if s.callLog == nil {
		rc.RespondError(CodeUnavailable, "call log not configured")
		return
	}
	var p callsParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Limit <= 0 {
		p.Limit = defaultCallLim
	}
	calls, err := s.callLog.Recent(p.Limit)
	if err != nil {
		rc.RespondError(CodeStore, err.Error())
		return
	}
	rc.Respond(map[string]any{"calls": calls})
}
