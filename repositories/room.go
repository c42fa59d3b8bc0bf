//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vanthaita/piratesocial-chat/domain"
	errs "github.com/vanthaita/piratesocial-chat/errors"
)

type IRoomRepository interface {
	CreateRoom(room domain.Room) error
	RoomExists(roomID domain.RoomID) (bool, error)
	AddMember(roomID domain.RoomID, userID int64) error
	RemoveMember(roomID domain.RoomID, userID int64) error
	IsMember(roomID domain.RoomID, userID int64) (bool, error)
	Members(roomID domain.RoomID) ([]int64, error)
}

// RoomRepository owns rooms and their durable member sets in BadgerDB.
// Membership is independent of live connectivity: a user stays a member
// across reconnects until explicitly removed.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

type diskRoom struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

type diskMembership struct {
	JoinedAt int64 `json:"joined_at"`
}

func roomKey(roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%d", roomID))
}

func memberKey(roomID domain.RoomID, userID int64) []byte {
	return []byte(fmt.Sprintf("member:%d:%d", roomID, userID))
}

func memberPrefix(roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("member:%d:", roomID))
}

// CreateRoom upserts the room record. Calling it twice with the same id is
// not an error; seeding at startup relies on that.
func (r RoomRepository) CreateRoom(room domain.Room) error {
	createdAt := room.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	data, err := json.Marshal(diskRoom{
		ID:        int64(room.ID),
		Name:      room.Name,
		CreatedAt: createdAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), data)
	})
}

func (r RoomRepository) RoomExists(roomID domain.RoomID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(roomID))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// AddMember durably adds the user to the room's member set. It is a no-op
// if the user is already a member, and fails with ErrRoomNotFound for an
// unknown room. The whole operation runs in one transaction so concurrent
// joins for the same (room, user) collapse to a single record.
func (r RoomRepository) AddMember(roomID domain.RoomID, userID int64) error {
	return r.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %d", errs.ErrRoomNotFound, roomID)
			}
			return err
		}
		key := memberKey(roomID, userID)
		if _, err := txn.Get(key); err == nil {
			// Already a member, keep the original join time.
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(diskMembership{JoinedAt: time.Now().UTC().Unix()})
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// RemoveMember durably removes the user from the room's member set.
// Removing a non-member succeeds; an unknown room fails with ErrRoomNotFound.
func (r RoomRepository) RemoveMember(roomID domain.RoomID, userID int64) error {
	return r.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %d", errs.ErrRoomNotFound, roomID)
			}
			return err
		}
		return txn.Delete(memberKey(roomID, userID))
	})
}

func (r RoomRepository) IsMember(roomID domain.RoomID, userID int64) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(roomID, userID))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Members lists the user ids durably subscribed to the room, decoded from
// the key suffix of the membership prefix scan.
func (r RoomRepository) Members(roomID domain.RoomID) ([]int64, error) {
	var members []int64
	prefix := memberPrefix(roomID)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			suffix := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			userID, err := strconv.ParseInt(suffix, 10, 64)
			if err != nil {
				r.log.Warn("Skipping malformed membership key", "key", string(it.Item().Key()))
				continue
			}
			members = append(members, userID)
		}
		return nil
	})
	return members, err
}

const maxTxnRetries = 8

// runUpdate retries the transaction on write conflicts. Mutations for the
// same room may race across connections; every transaction here re-reads
// its keys on retry and stays idempotent.
func runUpdate(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (r RoomRepository) update(fn func(txn *badger.Txn) error) error {
	return runUpdate(r.db, fn)
}
