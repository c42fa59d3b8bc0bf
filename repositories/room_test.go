package repositories

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/vanthaita/piratesocial-chat/domain"
	errs "github.com/vanthaita/piratesocial-chat/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Create_Room_And_Exists(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	roomID := domain.RoomID(1)

	// Given the room does not exist
	exists, err := repository.RoomExists(roomID)
	req.NoError(err)
	req.False(exists)

	// When it is created
	req.NoError(repository.CreateRoom(domain.Room{ID: roomID, Name: "general"}))

	// Then it exists
	exists, err = repository.RoomExists(roomID)
	req.NoError(err)
	req.True(exists)
}

func Test_Add_Member_To_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	err := repository.AddMember(domain.RoomID(404), 1)
	req.ErrorIs(err, errs.ErrRoomNotFound)
}

func Test_Add_Member_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	roomID := domain.RoomID(1)
	userID := int64(42)

	req.NoError(repository.CreateRoom(domain.Room{ID: roomID, Name: "general"}))

	// When the same user joins twice
	req.NoError(repository.AddMember(roomID, userID))
	req.NoError(repository.AddMember(roomID, userID))

	// Then the member set holds a single record
	members, err := repository.Members(roomID)
	req.NoError(err)
	req.Equal([]int64{userID}, members)
}

func Test_Concurrent_Joins_Collapse_To_One_Record(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	roomID := domain.RoomID(1)
	userID := int64(7)

	req.NoError(repository.CreateRoom(domain.Room{ID: roomID, Name: "general"}))

	// When the same user joins from many connections at once
	var wg sync.WaitGroup
	joinErrs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			joinErrs <- repository.AddMember(roomID, userID)
		}()
	}
	wg.Wait()
	close(joinErrs)
	for err := range joinErrs {
		req.NoError(err)
	}

	// Then exactly one membership record exists
	members, err := repository.Members(roomID)
	req.NoError(err)
	req.Equal([]int64{userID}, members)
}

func Test_Remove_Member(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	roomID := domain.RoomID(1)

	req.NoError(repository.CreateRoom(domain.Room{ID: roomID, Name: "general"}))
	req.NoError(repository.AddMember(roomID, 1))
	req.NoError(repository.AddMember(roomID, 2))

	// When one member leaves
	req.NoError(repository.RemoveMember(roomID, 1))

	// Then only the other remains, and leaving again is not an error
	isMember, err := repository.IsMember(roomID, 1)
	req.NoError(err)
	req.False(isMember)
	req.NoError(repository.RemoveMember(roomID, 1))

	members, err := repository.Members(roomID)
	req.NoError(err)
	req.Equal([]int64{2}, members)
}

func Test_Remove_Member_From_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	err := repository.RemoveMember(domain.RoomID(404), 1)
	req.ErrorIs(err, errs.ErrRoomNotFound)
}

func Test_Membership_Survives_Across_Repository_Instances(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	roomID := domain.RoomID(3)

	first := NewRoomRepository(db, slog.Default())
	req.NoError(first.CreateRoom(domain.Room{ID: roomID, Name: "durable"}))
	req.NoError(first.AddMember(roomID, 42))

	// A fresh repository over the same store still sees the member
	second := NewRoomRepository(db, slog.Default())
	isMember, err := second.IsMember(roomID, 42)
	req.NoError(err)
	req.True(isMember)
}
