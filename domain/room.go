package domain

import (
	"fmt"
	"strconv"
	"time"

	errs "github.com/vanthaita/piratesocial-chat/errors"
)

type RoomID int64

func (id RoomID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseRoomID parses the textual room reference clients send on the wire.
// Rooms are identified by base-10 integers.
func ParseRoomID(raw string) (RoomID, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errs.ErrInvalidRoomID, raw)
	}
	return RoomID(n), nil
}

// Room is a durable chat channel. Its member set lives in storage and is
// independent of live connectivity.
type Room struct {
	ID        RoomID
	Name      string
	CreatedAt time.Time
}
