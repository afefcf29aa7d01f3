package ipc

import (
	"encoding/json"
	"fmt"

	"widgethost/internal/types"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandPing       CommandType = "PING"
	CommandOpen       CommandType = "OPEN"
	CommandGetState   CommandType = "GET_STATE"
	CommandListStates CommandType = "LIST_STATES"
	CommandGetStatus  CommandType = "GET_STATUS"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// GetStatePayload is the payload of GET_STATE
type GetStatePayload struct {
	WindowLabel string `json:"window_label"`
}

// StateData is returned by GET_STATE; State is nil when Found is false
type StateData struct {
	Found bool               `json:"found"`
	State *types.WindowState `json:"state,omitempty"`
}

// StatesData is returned by LIST_STATES
type StatesData struct {
	States []types.WindowState `json:"states"`
}

// StatusData is returned by GET_STATUS. Journal is nil when the host runs without one.
type StatusData struct {
	PID           int                  `json:"pid" yaml:"pid"`
	OpenCount     int64                `json:"open_count" yaml:"open_count"`
	WindowCount   int                  `json:"window_count" yaml:"window_count"`
	UptimeSeconds int64                `json:"uptime_seconds" yaml:"uptime_seconds"`
	SessionID     string               `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Journal       *types.JournalStatus `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// NewRequest builds a request with an optional payload
func NewRequest(cmd CommandType, payload interface{}) (*Request, error) {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}
	return req, nil
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
