package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vanthaita/piratesocial-chat/domain"
	"github.com/vanthaita/piratesocial-chat/observability"
	"github.com/vanthaita/piratesocial-chat/repositories"
	"github.com/vanthaita/piratesocial-chat/runtime"
	"github.com/vanthaita/piratesocial-chat/services"
)

const testRoom = "5"

type fixture struct {
	server  *httptest.Server
	monitor *observability.Monitor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	rooms := repositories.NewRoomRepository(db, log)
	req.NoError(rooms.CreateRoom(domain.Room{ID: 5, Name: "general"}))

	registry := runtime.NewRegistry()
	sessions := runtime.NewSessionStore()
	monitor := observability.NewMonitor()
	service := services.NewChatService(log, registry, rooms,
		repositories.NewUserRepository(db),
		repositories.NewMessageRepository(db, log, nil),
		nil, monitor, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	gateway := NewServer(ctx, log, Config{
		ConnectionBufferSize: 16,
		MaxMessageSize:       4096,
		HandshakeTimeout:     2 * time.Second,
		EventTimeout:         2 * time.Second,
		WriteTimeout:         2 * time.Second,
		PongTimeout:          10 * time.Second,
	}, service, sessions, registry, monitor)

	server := httptest.NewServer(gateway.Routes())
	t.Cleanup(server.Close)
	return fixture{server: server, monitor: monitor}
}

func (f fixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
}

func dial(t *testing.T, f fixture) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventName string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope{Event: eventName, Data: raw}))
}

// await reads frames until the named event arrives, failing on any error
// event seen on the way.
func await(t *testing.T, conn *websocket.Conn, eventName string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Event == eventName {
			return env.Data
		}
		require.NotEqual(t, eventError, env.Event,
			"unexpected error event: %s", env.Data)
	}
}

func connect(t *testing.T, f fixture, userID int64) *websocket.Conn {
	t.Helper()
	conn := dial(t, f)
	send(t, conn, eventHandshake, handshakePayload{Profile: &profilePayload{
		ID:    userID,
		Email: fmt.Sprintf("user-%d@piratesocial.dev", userID),
	}})
	return conn
}

func join(t *testing.T, conn *websocket.Conn, room string) {
	t.Helper()
	send(t, conn, eventJoinRoom, joinRoomPayload{RoomID: room})
	data := await(t, conn, eventJoinedRoom)
	var ack joinedRoomPayload
	require.NoError(t, json.Unmarshal(data, &ack))
	require.Equal(t, room, ack.RoomID)
}

func TestGateway_Broadcast_Reaches_All_Room_Subscribers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	alice := connect(t, f, 1)
	bob := connect(t, f, 2)
	join(t, alice, testRoom)
	join(t, bob, testRoom)

	send(t, alice, eventSendMessage, sendMessagePayload{Message: "ahoy", RoomID: testRoom})

	// Both subscribers, the sender included, receive the same payload
	var fromAlice, fromBob receiveMessagePayload
	req.NoError(json.Unmarshal(await(t, alice, eventReceiveMessage), &fromAlice))
	req.NoError(json.Unmarshal(await(t, bob, eventReceiveMessage), &fromBob))

	req.Equal(fromAlice, fromBob)
	req.Equal("ahoy", fromBob.Message)
	req.Equal(testRoom, fromBob.RoomID)
	req.Equal(int64(1), fromBob.SenderID)
	req.Equal("user-1@piratesocial.dev", fromBob.Sender.Email)
	req.NotEmpty(fromBob.ID)
	req.False(fromBob.CreatedAt.IsZero())
}

func TestGateway_Connected_But_Not_Joined_Receives_Nothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	alice := connect(t, f, 1)
	carol := connect(t, f, 3)
	join(t, alice, testRoom)

	send(t, alice, eventSendMessage, sendMessagePayload{Message: "secret", RoomID: testRoom})
	await(t, alice, eventReceiveMessage)

	// Carol is authenticated but never joined: nothing shows up
	req.NoError(carol.SetReadDeadline(time.Now().Add(500 * time.Millisecond)))
	var env envelope
	err := carol.ReadJSON(&env)
	req.Error(err)
}

func TestGateway_First_Frame_Must_Be_Handshake(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	conn := dial(t, f)

	// When the first frame is anything but a handshake
	send(t, conn, eventSendMessage, sendMessagePayload{Message: "ahoy", RoomID: testRoom})

	// Then the server reports unauthenticated and closes
	req.NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	var env envelope
	req.NoError(conn.ReadJSON(&env))
	req.Equal(eventError, env.Event)
	var payload errorPayload
	req.NoError(json.Unmarshal(env.Data, &payload))
	req.Equal("unauthenticated", payload.Message)

	_, _, err := conn.ReadMessage()
	req.Error(err)
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))
	req.Equal(uint64(1), f.monitor.Snapshot().AuthFailures)
}

func TestGateway_Handshake_Without_Profile_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	conn := dial(t, f)

	send(t, conn, eventHandshake, handshakePayload{})

	req.NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	var env envelope
	req.NoError(conn.ReadJSON(&env))
	req.Equal(eventError, env.Event)

	_, _, err := conn.ReadMessage()
	req.Error(err)
}

func TestGateway_Non_Numeric_Room_Is_A_Unicast_Error(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := connect(t, f, 1)

	send(t, alice, eventSendMessage, sendMessagePayload{Message: "ahoy", RoomID: "lobby"})

	req.NoError(alice.SetReadDeadline(time.Now().Add(3 * time.Second)))
	var env envelope
	req.NoError(alice.ReadJSON(&env))
	req.Equal(eventError, env.Event)
	var payload errorPayload
	req.NoError(json.Unmarshal(env.Data, &payload))
	req.Equal("invalid room id", payload.Message)

	// The failure stays private to this connection, which remains usable
	join(t, alice, testRoom)
}

func TestGateway_Send_To_Unknown_Room_Is_A_Unicast_Error(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := connect(t, f, 1)
	join(t, alice, testRoom)

	send(t, alice, eventSendMessage, sendMessagePayload{Message: "ahoy", RoomID: "404"})

	req.NoError(alice.SetReadDeadline(time.Now().Add(3 * time.Second)))
	var env envelope
	req.NoError(alice.ReadJSON(&env))
	req.Equal(eventError, env.Event)
	var payload errorPayload
	req.NoError(json.Unmarshal(env.Data, &payload))
	req.Equal("failed to send message", payload.Message)
}

func TestGateway_Leave_Room_Stops_Deliveries(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	alice := connect(t, f, 1)
	bob := connect(t, f, 2)
	join(t, alice, testRoom)
	join(t, bob, testRoom)

	// When bob leaves, the ack echoes the bare room reference
	raw, err := json.Marshal(testRoom)
	req.NoError(err)
	req.NoError(bob.WriteJSON(envelope{Event: eventLeaveRoom, Data: raw}))
	data := await(t, bob, eventLeftRoom)
	var ref string
	req.NoError(json.Unmarshal(data, &ref))
	req.Equal(testRoom, ref)

	send(t, alice, eventSendMessage, sendMessagePayload{Message: "after leave", RoomID: testRoom})
	await(t, alice, eventReceiveMessage)

	// Then nothing reaches bob anymore
	req.NoError(bob.SetReadDeadline(time.Now().Add(500 * time.Millisecond)))
	var env envelope
	req.Error(bob.ReadJSON(&env))
}

func TestGateway_Duplicate_Handshake_Is_A_Unicast_Error(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := connect(t, f, 1)
	join(t, alice, testRoom)

	send(t, alice, eventHandshake, handshakePayload{Profile: &profilePayload{
		ID: 1, Email: "user-1@piratesocial.dev",
	}})

	req.NoError(alice.SetReadDeadline(time.Now().Add(3 * time.Second)))
	var env envelope
	req.NoError(alice.ReadJSON(&env))
	req.Equal(eventError, env.Event)
	var payload errorPayload
	req.NoError(json.Unmarshal(env.Data, &payload))
	req.Equal("invalid payload", payload.Message)
}

func TestGateway_History_Returns_Stored_Messages_Newest_First(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := connect(t, f, 1)
	join(t, alice, testRoom)

	for i := 0; i < 3; i++ {
		send(t, alice, eventSendMessage, sendMessagePayload{
			Message: fmt.Sprintf("message %d", i), RoomID: testRoom,
		})
		await(t, alice, eventReceiveMessage)
	}

	send(t, alice, eventHistory, historyPayload{RoomID: testRoom})
	data := await(t, alice, eventRoomHistory)

	var history roomHistoryPayload
	req.NoError(json.Unmarshal(data, &history))
	req.Equal(testRoom, history.RoomID)
	req.Len(history.Messages, 3)
	req.Equal("message 2", history.Messages[0].Message)
	req.Equal("message 0", history.Messages[2].Message)
}

func TestGateway_Healthz_And_Stats(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	alice := connect(t, f, 1)
	join(t, alice, testRoom)

	resp, err = http.Get(f.server.URL + "/stats")
	req.NoError(err)
	defer resp.Body.Close()
	var snapshot observability.Snapshot
	req.NoError(json.NewDecoder(resp.Body).Decode(&snapshot))
	req.Equal(int64(1), snapshot.ActiveConnections)
}
