//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/vanthaita/piratesocial-chat/domain"
	errs "github.com/vanthaita/piratesocial-chat/errors"
)

type IMessageRepository interface {
	CreateMessage(roomID domain.RoomID, senderID int64, content string) (domain.Message, error)
	GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

// MessageRepository persists messages in BadgerDB and returns fully
// populated records, including the generated id, timestamp, and the
// denormalized sender contact fields. Callers must not re-derive any of
// these: the broadcast has to reflect exactly what was stored.
type MessageRepository struct {
	db        *badger.DB
	log       *slog.Logger
	pageLimit *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, pageLimit *int) MessageRepository {
	return MessageRepository{db: db, log: log, pageLimit: pageLimit}
}

type diskMessage struct {
	ID            string `json:"id"`
	Room          int64  `json:"room"`
	SenderID      int64  `json:"sender_id"`
	SenderEmail   string `json:"sender_email"`
	SenderPicture string `json:"sender_picture"`
	Content       string `json:"content"`
	At            int64  `json:"at"`
}

// messageKey formats "msg:{room}:{timestamp_padded}:{uuid}" so that:
//  1. a prefix scan per room iterates in chronological order thanks to the
//     19-digit zero padding,
//  2. the uuid disambiguates two messages stored in the same nanosecond.
func messageKey(roomID domain.RoomID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%d:%019d:%s", roomID, at.UnixNano(), id))
}

func messagePrefix(roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%d:", roomID))
}

// CreateMessage validates the room and sender, then stores and returns the
// message. Room check, sender lookup, and write share one transaction.
func (m MessageRepository) CreateMessage(roomID domain.RoomID, senderID int64, content string) (domain.Message, error) {
	message := domain.Message{
		ID:        uuid.New(),
		Room:      roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	err := runUpdate(m.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %d", errs.ErrRoomNotFound, roomID)
			}
			return err
		}

		item, err := txn.Get(userKey(senderID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %d", errs.ErrSenderNotFound, senderID)
			}
			return err
		}
		var sender diskUser
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &sender)
		}); err != nil {
			return err
		}
		message.SenderEmail = sender.Email
		message.SenderPicture = sender.Picture

		data, err := json.Marshal(fromMessage(message))
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(messageKey(roomID, message.CreatedAt, message.ID), data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetMessages pages the room history newest first. The cursor is the key
// suffix of the last returned entry; passing it back resumes the scan just
// past that message.
func (m MessageRepository) GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var rawValues [][]byte
	var lastKey string

	prefix := messagePrefix(roomID)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		if cursor == nil {
			// Seek past every possible timestamp, then walk backwards.
			seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		} else {
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.pageLimit != nil && len(rawValues) == *m.pageLimit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			if err := item.Value(func(v []byte) error {
				rawValues = append(rawValues, append([]byte{}, v...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]domain.Message, 0, len(rawValues))
	for _, raw := range rawValues {
		var record diskMessage
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, nil, err
		}
		message, err := toMessage(record)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	if len(messages) == 0 {
		return nil, nil, nil
	}
	return messages, &lastKey, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:            message.ID.String(),
		Room:          int64(message.Room),
		SenderID:      message.SenderID,
		SenderEmail:   message.SenderEmail,
		SenderPicture: message.SenderPicture,
		Content:       message.Content,
		At:            message.CreatedAt.UnixNano(),
	}
}

func toMessage(record diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:            parsedID,
		Room:          domain.RoomID(record.Room),
		SenderID:      record.SenderID,
		SenderEmail:   record.SenderEmail,
		SenderPicture: record.SenderPicture,
		Content:       record.Content,
		CreatedAt:     time.Unix(0, record.At).UTC(),
	}, nil
}
