package bridge

import (
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Message types on the UI websocket.
const (
	TypeEvent    = "event"
	TypeRequest  = "req"
	TypeResponse = "res"
)

// Ops the UI may invoke.
const (
	OpStartLogServer = "start_log_server"
	OpCallService    = "call_service"
)

// Error codes carried in ErrPayload.Code.
const (
	CodeBadRequest = "bad_request"
	CodeUnknownOp  = "unknown_op"
	CodeCallFailed = "call_failed"
)

// Message is the envelope for everything exchanged with the UI.
type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrPayload     `json:"error,omitempty"`
}

type ErrPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CallServiceArgs is the payload of a call_service request.
type CallServiceArgs struct {
	City       string `json:"city"`
	DateOffset int    `json:"dateOffset"`
}

func encodePayload(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %T payload", v)
	}
	return b, nil
}
