package gateway

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is reported in the hello payload.
const ProtocolVersion = 1

// Frame kinds on the monitor socket.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Error codes carried in ErrorShape.Code.
const (
	CodeProtocol       = "protocol_error"
	CodeInvalidParams  = "invalid_params"
	CodeUnauthorized   = "unauthorized"
	CodeMethodNotFound = "method_not_found"
	CodeUnavailable    = "unavailable"
	CodeLedger         = "ledger_error"
	CodeStore          = "store_error"
)

// Frame is the single envelope used on the monitor socket. Requests carry
// ID, Method and Params; responses carry ID, OK and either Payload or
// Error; events carry Event, Seq and Payload.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// ErrorShape describes a failed request.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorShape) Error() string { return e.Code + ": " + e.Message }

// DecodeParams unmarshals request params into v. Absent params leave v
// untouched.
func (f Frame) DecodeParams(v any) error {
	if len(f.Params) == 0 || string(f.Params) == "null" {
		return nil
	}
	if err := json.Unmarshal(f.Params, v); err != nil {
		return fmt.Errorf("params for %s: %w", f.Method, err)
	}
	return nil
}

// Err returns the response error, or nil for anything that is not a
// failed response.
func (f Frame) Err() error {
	if f.Type != FrameTypeResponse || f.OK == nil || *f.OK {
		return nil
	}
	if f.Error == nil {
		return ErrorShape{Code: CodeProtocol, Message: "response failed without error"}
	}
	return *f.Error
}

// ConnectParams is the first request a monitor sends.
type ConnectParams struct {
	Client ClientInfo   `json:"client"`
	Auth   *ConnectAuth `json:"auth,omitempty"`
	// Events filters pushed events; empty means all of them.
	Events []string `json:"events,omitempty"`
}

type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
}

type ConnectAuth struct {
	Token string `json:"token,omitempty"`
}

// HelloOK answers a successful connect.
type HelloOK struct {
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Features Features   `json:"features"`
}

type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// Features lists the RPC methods and hook events a monitor can use.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

func encode(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return raw, nil
}

func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := encode(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

func NewResponse(id string, payload any) (Frame, error) {
	raw, err := encode(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

func NewErrorResponse(id string, e ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &e}
}

func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := encode(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Seq: seq, Payload: raw}, nil
}
