// Package event defines the outbound domain events fanned out to
// connection sinks.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/vanthaita/piratesocial-chat/domain"
)

type DomainEvent interface {
	Name() string
	OccurredAt() time.Time
}

// MessageReceived carries a persisted message to every connection currently
// subscribed to its room. All fields mirror the stored record.
type MessageReceived struct {
	ID            uuid.UUID
	Room          domain.RoomID
	SenderID      int64
	SenderEmail   string
	SenderPicture string
	Content       string
	At            time.Time
}

func (e MessageReceived) Name() string { return "MessageReceived" }

func (e MessageReceived) OccurredAt() time.Time { return e.At }

// FromMessage builds the broadcast event for a stored message.
func FromMessage(m domain.Message) MessageReceived {
	return MessageReceived{
		ID:            m.ID,
		Room:          m.Room,
		SenderID:      m.SenderID,
		SenderEmail:   m.SenderEmail,
		SenderPicture: m.SenderPicture,
		Content:       m.Content,
		At:            m.CreatedAt,
	}
}
