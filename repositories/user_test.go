package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vanthaita/piratesocial-chat/domain"
	errs "github.com/vanthaita/piratesocial-chat/errors"
)

func Test_Upsert_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))
	identity := domain.Identity{ID: 42, Email: "alice@piratesocial.dev", Picture: "https://cdn/alice.png"}

	req.NoError(repository.UpsertUser(identity))

	user, err := repository.GetUser(identity.ID)
	req.NoError(err)
	req.Equal(identity.ID, user.ID)
	req.Equal(identity.Email, user.Email)
	req.Equal(identity.Picture, user.Picture)
	req.False(user.FirstSeen.IsZero())
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUser(404)
	req.ErrorIs(err, errs.ErrUserNotFound)
}

func Test_Upsert_Refreshes_Contact_But_Keeps_First_Seen(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	req.NoError(repository.UpsertUser(domain.Identity{ID: 1, Email: "bob@piratesocial.dev"}))
	first, err := repository.GetUser(1)
	req.NoError(err)

	time.Sleep(1100 * time.Millisecond)

	// When the same user reconnects with a new picture
	req.NoError(repository.UpsertUser(domain.Identity{ID: 1, Email: "bob@piratesocial.dev", Picture: "https://cdn/bob.png"}))

	// Then contact fields are refreshed and first-seen is preserved
	second, err := repository.GetUser(1)
	req.NoError(err)
	req.Equal("https://cdn/bob.png", second.Picture)
	req.Equal(first.FirstSeen, second.FirstSeen)
}
