package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientChat    MessageType = "client_chat"
	TypeClientControl MessageType = "client_control"
	TypeChatResult    MessageType = "chat_result"
	TypeStatusEvent   MessageType = "status_event"
	TypeSystemEvent   MessageType = "system_event"
	TypeErrorEvent    MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientChat carries one user message inbound.
type ClientChat struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	UserID    string      `json:"user_id"`
	Message   string      `json:"message"`
	TSMs      int64       `json:"ts_ms,omitempty"`
}

// ClientControl carries session-level actions (end, status).
type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

// ChatResult pushes the pipeline outcome back to the originating client.
type ChatResult struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type StatusEvent struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientChat:
		var msg ClientChat
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.UserID == "" || msg.Message == "" {
			return nil, errors.New("invalid client_chat")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
