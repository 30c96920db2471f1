package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is served at /health with only Status set, and by the
// health RPC with everything filled in.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	ActiveCalls int    `json:"activeCalls,omitempty"`
	Monitors    int    `json:"monitors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found", "path": r.URL.Path})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// RequestHandler serves one monitor RPC method.
type RequestHandler func(rc *RequestContext)

// RequestContext is a single monitor request in flight.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("response write failed")
	}
}

func (rc *RequestContext) RespondError(code, message string) {
	if err := rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message}); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Str("code", code).Msg("error response write failed")
	}
}

// Params decodes the request params into target.
func (rc *RequestContext) Params(target any) error {
	return rc.Frame.DecodeParams(target)
}
