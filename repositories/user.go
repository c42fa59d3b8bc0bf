//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vanthaita/piratesocial-chat/domain"
	errs "github.com/vanthaita/piratesocial-chat/errors"
)

type IUserRepository interface {
	UpsertUser(identity domain.Identity) error
	GetUser(id int64) (User, error)
}

// User is the repository-level representation of a known sender. The
// identity provider owns the source of truth; this record is the local
// denormalization used to populate sender contact fields on messages.
type User struct {
	ID        int64
	Email     string
	Picture   string
	FirstSeen time.Time
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

type diskUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Picture   string `json:"picture"`
	FirstSeen int64  `json:"first_seen"`
}

func userKey(id int64) []byte {
	return []byte(fmt.Sprintf("user:%d", id))
}

// UpsertUser records the verified profile attached to a connection. Contact
// fields are refreshed on every connect; the first-seen timestamp is kept.
func (u UserRepository) UpsertUser(identity domain.Identity) error {
	return runUpdate(u.db, func(txn *badger.Txn) error {
		record := diskUser{
			ID:        identity.ID,
			Email:     identity.Email,
			Picture:   identity.Picture,
			FirstSeen: time.Now().UTC().Unix(),
		}
		item, err := txn.Get(userKey(identity.ID))
		switch {
		case err == nil:
			var existing diskUser
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &existing)
			}); err != nil {
				return err
			}
			record.FirstSeen = existing.FirstSeen
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(userKey(identity.ID), data)
	})
}

func (u UserRepository) GetUser(id int64) (User, error) {
	var record diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, fmt.Errorf("%w: %d", errs.ErrUserNotFound, id)
	}
	if err != nil {
		return User{}, err
	}
	return User{
		ID:        record.ID,
		Email:     record.Email,
		Picture:   record.Picture,
		FirstSeen: time.Unix(record.FirstSeen, 0).UTC(),
	}, nil
}
