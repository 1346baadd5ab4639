package ws

import (
	"encoding/json"
	"errors"
	"time"
)

// Event names on the wire
const (
	EventMessageSend     = "message:send"
	EventMessageReceive  = "message:receive"
	EventTypingStart     = "typing:start"
	EventTypingStop      = "typing:stop"
	EventTypingIndicator = "typing:indicator"
	EventUsersOnline     = "users:online"
	EventError           = "error"
)

// Event is the envelope for every frame: {"event": name, "data": payload}
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type inboundEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

type messageSend struct {
	ReceiverID string          `json:"receiverId"`
	Message    json.RawMessage `json:"message"`
}

// MessageReceive is delivered to the receiver of a relayed message
type MessageReceive struct {
	SenderID  string    `json:"senderId"`
	Message   any       `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingIndicator tells the receiver whether userId is typing
type TypingIndicator struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type errorPayload struct {
	Message string `json:"message"`
}

var errReceiverRequired = errors.New("receiverId is required")

// parseReceiverID accepts either a bare JSON string or {"receiverId": "..."}
func parseReceiverID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		if id == "" {
			return "", errReceiverRequired
		}
		return id, nil
	}

	var obj struct {
		ReceiverID string `json:"receiverId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.ReceiverID == "" {
		return "", errReceiverRequired
	}
	return obj.ReceiverID, nil
}
