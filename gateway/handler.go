package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"github.com/vanthaita/piratesocial-chat/domain"
	errs "github.com/vanthaita/piratesocial-chat/errors"
)

// dispatch routes one authenticated inbound event. Every failure below is
// non-fatal: it becomes a unicast error to this connection and never
// reaches other subscribers.
func (s *Server) dispatch(session *domain.Session, c *connection, env envelope) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.EventTimeout)
	defer cancel()

	var err error
	switch env.Event {
	case eventSendMessage:
		err = s.handleSendMessage(ctx, session, c, env.Data)
	case eventJoinRoom:
		err = s.handleJoinRoom(ctx, session, c, env.Data)
	case eventLeaveRoom:
		err = s.handleLeaveRoom(ctx, session, c, env.Data)
	case eventHistory:
		err = s.handleHistory(ctx, session, c, env.Data)
	case eventHandshake:
		err = fmt.Errorf("%w: duplicate handshake", errs.ErrInvalidPayload)
	default:
		err = fmt.Errorf("%w: unknown event %q", errs.ErrInvalidPayload, env.Event)
	}

	if err != nil {
		s.monitor.IncrUnicastErrors()
		s.log.Warn("Event failed", "conn_id", session.ConnID,
			"user_id", session.Identity.ID, "event", env.Event, "error", err)
		c.sendError(errs.Wire(err))
	}
}

func (s *Server) handleSendMessage(ctx context.Context, session *domain.Session, _ *connection, data json.RawMessage) error {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidPayload, err)
	}
	roomID, err := domain.ParseRoomID(payload.RoomID)
	if err != nil {
		return err
	}
	return s.service.SendMessage(ctx, session, roomID, payload.Message)
}

func (s *Server) handleJoinRoom(ctx context.Context, session *domain.Session, c *connection, data json.RawMessage) error {
	var payload joinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidPayload, err)
	}
	roomID, err := domain.ParseRoomID(payload.RoomID)
	if err != nil {
		return err
	}
	if err := s.service.JoinRoom(ctx, session, roomID); err != nil {
		return err
	}
	c.sendEvent(eventJoinedRoom, joinedRoomPayload{RoomID: payload.RoomID})
	return nil
}

// handleLeaveRoom differs from join on the wire: both the request and the
// ack carry the room reference as a bare JSON string.
func (s *Server) handleLeaveRoom(ctx context.Context, session *domain.Session, c *connection, data json.RawMessage) error {
	var roomRef string
	if err := json.Unmarshal(data, &roomRef); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidPayload, err)
	}
	roomID, err := domain.ParseRoomID(roomRef)
	if err != nil {
		return err
	}
	if err := s.service.LeaveRoom(ctx, session, roomID); err != nil {
		return err
	}
	c.sendEvent(eventLeftRoom, roomRef)
	return nil
}

func (s *Server) handleHistory(ctx context.Context, _ *domain.Session, c *connection, data json.RawMessage) error {
	var payload historyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidPayload, err)
	}
	roomID, err := domain.ParseRoomID(payload.RoomID)
	if err != nil {
		return err
	}
	messages, cursor, err := s.service.History(ctx, roomID, payload.Cursor)
	if err != nil {
		return err
	}
	c.sendEvent(eventRoomHistory, roomHistoryPayload{
		RoomID:   payload.RoomID,
		Messages: lo.Map(messages, func(m domain.Message, _ int) receiveMessagePayload {
			return toHistoryMessage(m)
		}),
		Cursor: cursor,
	})
	return nil
}
