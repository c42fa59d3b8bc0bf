package gateway

import (
	"context"
	"log/slog"

	"github.com/vanthaita/piratesocial-chat/domain/event"
	"github.com/vanthaita/piratesocial-chat/observability"
)

// connSink bridges the broadcast path onto one connection's outbound queue.
// The broadcaster must never block on a slow client, so a full queue drops
// the frame for this connection only.
type connSink struct {
	connID  string
	log     *slog.Logger
	send    chan<- []byte
	monitor *observability.Monitor
}

func newConnSink(connID string, log *slog.Logger, send chan<- []byte, monitor *observability.Monitor) *connSink {
	return &connSink{connID: connID, log: log, send: send, monitor: monitor}
}

func (s *connSink) Consume(ctx context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageReceived:
		frame, err := encode(eventReceiveMessage, toReceiveMessage(evt))
		if err != nil {
			return err
		}
		select {
		case s.send <- frame:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			s.monitor.IncrDeliveryDrops()
			s.log.Warn("Outbound queue full, dropping broadcast", "conn_id", s.connID)
			return nil
		}
	default:
		s.log.Debug("Unhandled event kind", "event", e.Name())
		return nil
	}
}
