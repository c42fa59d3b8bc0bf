// Messages are immutable records: created by the persistence layer, never
// mutated or deleted by the gateway.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a stored chat message. The sender contact fields are
// denormalized by the persistence layer so that broadcasts reflect exactly
// the persisted record.
type Message struct {
	ID            uuid.UUID
	Room          RoomID
	SenderID      int64
	SenderEmail   string
	SenderPicture string
	Content       string
	CreatedAt     time.Time
}
