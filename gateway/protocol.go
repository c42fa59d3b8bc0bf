package gateway

import (
	"encoding/json"
	"time"

	"github.com/vanthaita/piratesocial-chat/domain"
	"github.com/vanthaita/piratesocial-chat/domain/event"
)

// Inbound event names.
const (
	eventHandshake   = "handshake"
	eventSendMessage = "sendMessage"
	eventJoinRoom    = "joinRoom"
	eventLeaveRoom   = "leaveRoom"
	eventHistory     = "history"
)

// Outbound event names.
const (
	eventReceiveMessage = "receiveMessage"
	eventJoinedRoom     = "joinedRoom"
	eventLeftRoom       = "leftRoom"
	eventRoomHistory    = "roomHistory"
	eventError          = "error"
)

// envelope frames every message in both directions: a named event plus its
// raw payload. leaveRoom/leftRoom carry a bare JSON string as data; all
// other events carry an object.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type profilePayload struct {
	ID      int64  `json:"id" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Picture string `json:"picture"`
}

type handshakePayload struct {
	Profile *profilePayload `json:"profile" validate:"required"`
}

type sendMessagePayload struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type historyPayload struct {
	RoomID string  `json:"roomId"`
	Cursor *string `json:"cursor,omitempty"`
}

type senderContact struct {
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

type receiveMessagePayload struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	RoomID    string        `json:"roomId"`
	SenderID  int64         `json:"senderId"`
	Message   string        `json:"message"`
	Sender    senderContact `json:"sender"`
}

type joinedRoomPayload struct {
	RoomID string `json:"roomId"`
}

type roomHistoryPayload struct {
	RoomID   string                  `json:"roomId"`
	Messages []receiveMessagePayload `json:"messages"`
	Cursor   *string                 `json:"cursor,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// encode marshals a payload into a framed wire message.
func encode(eventName string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: eventName, Data: raw})
}

func toReceiveMessage(e event.MessageReceived) receiveMessagePayload {
	return receiveMessagePayload{
		ID:        e.ID.String(),
		CreatedAt: e.At,
		RoomID:    e.Room.String(),
		SenderID:  e.SenderID,
		Message:   e.Content,
		Sender:    senderContact{Email: e.SenderEmail, Picture: e.SenderPicture},
	}
}

func toHistoryMessage(m domain.Message) receiveMessagePayload {
	return toReceiveMessage(event.FromMessage(m))
}
