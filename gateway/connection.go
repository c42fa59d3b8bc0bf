package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connection owns one websocket transport: a single reader (the dispatch
// loop) and a single writer goroutine fed by the buffered send queue.
type connection struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	log  *slog.Logger

	writeTimeout time.Duration
	pongTimeout  time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(id string, ws *websocket.Conn, log *slog.Logger, bufferSize int,
	writeTimeout, pongTimeout time.Duration, maxMessageSize int64) *connection {
	ws.SetReadLimit(maxMessageSize)
	return &connection{
		id:           id,
		ws:           ws,
		send:         make(chan []byte, bufferSize),
		log:          log,
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
		done:         make(chan struct{}),
	}
}

// readFrame blocks until the next inbound frame. The read deadline is
// refreshed on every frame and every pong, so idle-but-alive connections
// survive while dead ones are reaped.
func (c *connection) readFrame() (envelope, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(c.pongTimeout)); err != nil {
		return envelope{}, err
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return envelope{}, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	return env, nil
}

// writePump is the only goroutine allowed to write to the websocket. On
// close it drains whatever is still queued before sending the close frame,
// so a final unicast error is not lost in a race with the shutdown.
func (c *connection) writePump() {
	pingInterval := c.pongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			for {
				select {
				case frame := <-c.send:
					if err := c.write(websocket.TextMessage, frame); err != nil {
						return
					}
				default:
					_ = c.write(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}

// enqueue queues a unicast frame, reporting whether it fit in the buffer.
func (c *connection) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// sendEvent marshals and queues a unicast event for this connection only.
func (c *connection) sendEvent(eventName string, data any) {
	frame, err := encode(eventName, data)
	if err != nil {
		c.log.Error("Failed to encode outbound event", "event", eventName, "error", err)
		return
	}
	if !c.enqueue(frame) {
		c.log.Warn("Outbound queue full, dropping unicast", "conn_id", c.id, "event", eventName)
	}
}

func (c *connection) sendError(message string) {
	c.sendEvent(eventError, errorPayload{Message: message})
}

// close stops the writer, which in turn closes the underlying transport.
// Safe to call multiple times and from any goroutine.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
