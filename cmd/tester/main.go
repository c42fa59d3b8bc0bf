package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

// Exit codes for the tester application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type wireEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wireProfile struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

type wireMessage struct {
	ID       string `json:"id"`
	RoomID   string `json:"roomId"`
	SenderID int64  `json:"senderId"`
	Message  string `json:"message"`
}

func main() {
	code, err := run()
	if err != nil {
		color.Error.Printf("Tester error: %v\n", err)
	}
	os.Exit(code)
}

// run connects N listeners plus one speaker to the same room, sends a single
// probe message and verifies every listener receives it verbatim.
func run() (int, error) {
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	probe := fmt.Sprintf("probe %d", time.Now().UnixNano())

	var wg sync.WaitGroup
	results := make(chan error, config.Listeners)
	ready := make(chan struct{}, config.Listeners)

	for i := 0; i < config.Listeners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results <- listen(ctx, config, int64(100+n), probe, ready)
		}(i)
	}

	// Wait for every listener to be joined before speaking.
	for i := 0; i < config.Listeners; i++ {
		select {
		case <-ready:
		case <-ctx.Done():
			return exitRuntime, fmt.Errorf("listeners not ready: %w", ctx.Err())
		}
	}

	if err := speak(ctx, config, 99, probe); err != nil {
		return exitRuntime, fmt.Errorf("speaker failed: %w", err)
	}

	wg.Wait()
	close(results)

	failed := 0
	for err := range results {
		if err != nil {
			failed++
			color.Error.Printf("listener: %v\n", err)
		}
	}
	if failed > 0 {
		color.Error.Printf("%d/%d listeners missed the probe\n", failed, config.Listeners)
		return exitRuntime, nil
	}
	color.Success.Printf("all %d listeners received %q in room %s\n",
		config.Listeners, probe, config.RoomID)
	return exitOK, nil
}

// listen joins the room and blocks until the probe message arrives or the
// context expires.
func listen(ctx context.Context, config Config, userID int64, probe string, ready chan<- struct{}) error {
	conn, err := connect(ctx, config, userID)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := send(conn, "joinRoom", map[string]string{"roomId": config.RoomID}); err != nil {
		return err
	}
	if _, err := await(ctx, conn, "joinedRoom"); err != nil {
		return err
	}
	ready <- struct{}{}

	data, err := await(ctx, conn, "receiveMessage")
	if err != nil {
		return err
	}
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("bad receiveMessage payload: %w", err)
	}
	if msg.Message != probe {
		return fmt.Errorf("expected %q, received %q", probe, msg.Message)
	}
	color.Info.Printf("user %d received message %s from sender %d\n", userID, msg.ID, msg.SenderID)
	return nil
}

// speak joins the room and emits the probe message once.
func speak(ctx context.Context, config Config, userID int64, probe string) error {
	conn, err := connect(ctx, config, userID)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := send(conn, "joinRoom", map[string]string{"roomId": config.RoomID}); err != nil {
		return err
	}
	if _, err := await(ctx, conn, "joinedRoom"); err != nil {
		return err
	}
	return send(conn, "sendMessage", map[string]string{
		"message": probe,
		"roomId":  config.RoomID,
	})
}

// connect dials the gateway and performs the identity handshake.
func connect(ctx context.Context, config Config, userID int64) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.GatewayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to gateway at %s: %w", config.GatewayURL, err)
	}
	err = send(conn, "handshake", map[string]any{
		"profile": wireProfile{
			ID:    userID,
			Email: fmt.Sprintf("tester-%d@piratesocial.dev", userID),
		},
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func send(conn *websocket.Conn, eventName string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(wireEnvelope{Event: eventName, Data: raw})
}

// await reads frames until the named event shows up. A server-side error
// event aborts the wait immediately.
func await(ctx context.Context, conn *websocket.Conn, eventName string) (json.RawMessage, error) {
	deadline, ok := ctx.Deadline()
	if ok {
		_ = conn.SetReadDeadline(deadline)
	}
	for {
		var env wireEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", eventName, err)
		}
		switch env.Event {
		case eventName:
			return env.Data, nil
		case "error":
			return nil, fmt.Errorf("server error while waiting for %s: %s", eventName, env.Data)
		}
	}
}
