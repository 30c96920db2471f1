package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/version"
)

// Monitor sockets speak a small request/response protocol:
//
//	server → connect.challenge event
//	client → connect request (token, optional event filter)
//	server → HelloOK response, then pushes hook events
//
// after which the client may call the RPC methods listed in HelloOK.

const challengeEvent = "connect.challenge"

// checkWebSocketOrigin admits clients without an Origin header (non-browser
// tools) and browsers whose origin is in allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isOriginAllowed(origin, allowed)
	}
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("monitor rate limited after failed logins")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMonitorPayload)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("monitor handshake failed")
		var rej *rejection
		if errors.As(err, &rej) && rej.code == CodeUnauthorized {
			s.authLimiter.recordFailure(r.RemoteAddr)
		}
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()
	s.readLoop(client)
}

// rejection is a handshake failure the client is told about before the
// socket closes.
type rejection struct {
	reqID, code, msg string
}

func (r *rejection) Error() string { return r.code + ": " + r.msg }

func (r *rejection) send(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(NewErrorResponse(r.reqID, ErrorShape{Code: r.code, Message: r.msg}))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, r.msg))
}

func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(challengeEvent, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	req, params, err := s.readConnect(conn)
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			rej.send(conn)
		}
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, params.Client, params.Events, s.log.Sub("ws"))
	resp, err := NewResponse(req.ID, s.hello(client.ConnID))
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Strs("events", params.Events).
		Msg("monitor authenticated")
	return client, nil
}

// readConnect reads the connect request and checks its credentials.
func (s *Server) readConnect(conn *websocket.Conn) (Frame, ConnectParams, error) {
	var (
		req    Frame
		params ConnectParams
	)
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return req, params, fmt.Errorf("reading connect: %w", err)
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		return req, params, &rejection{code: CodeProtocol, msg: "malformed frame"}
	}
	if req.Type != FrameTypeRequest || req.Method != "connect" {
		return req, params, &rejection{reqID: req.ID, code: CodeProtocol, msg: "expected connect request"}
	}
	if err := req.DecodeParams(&params); err != nil {
		return req, params, &rejection{reqID: req.ID, code: CodeInvalidParams, msg: "invalid connect params"}
	}
	if res := Authorize(s.auth, params.Auth); !res.OK {
		return req, params, &rejection{reqID: req.ID, code: CodeUnauthorized, msg: res.Reason}
	}
	return req, params, nil
}

func (s *Server) hello(connID string) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: s.version, Commit: version.Commit, ConnID: connID},
		Features: Features{
			Methods: s.Methods(),
			Events:  append([]string{challengeEvent}, hooks.AllEvents...),
		},
	}
}

// readLoop serves RPC requests until the monitor goes away.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		switch {
		case err == nil:
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			s.log.Debug().Str("connId", client.ConnID).Msg("monitor closed connection")
			return
		default:
			s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("monitor read failed")
			return
		}
		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}
		s.dispatch(client, frame)
	}
}

func (s *Server) dispatch(client *Client, frame Frame) {
	rc := &RequestContext{Client: client, Frame: frame, Server: s}
	handler, ok := s.handlers[frame.Method]
	if !ok {
		rc.RespondError(CodeMethodNotFound, "unknown method: "+frame.Method)
		return
	}
	handler(rc)
}
