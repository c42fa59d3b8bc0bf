package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanthaita/piratesocial-chat/contract"
	"github.com/vanthaita/piratesocial-chat/domain"
	"github.com/vanthaita/piratesocial-chat/domain/event"
	errs "github.com/vanthaita/piratesocial-chat/errors"
	"github.com/vanthaita/piratesocial-chat/moderation"
	"github.com/vanthaita/piratesocial-chat/observability"
	"github.com/vanthaita/piratesocial-chat/repositories"
)

type IChatService interface {
	Register(identity domain.Identity) error
	SendMessage(ctx context.Context, session *domain.Session, roomID domain.RoomID, content string) error
	JoinRoom(ctx context.Context, session *domain.Session, roomID domain.RoomID) error
	LeaveRoom(ctx context.Context, session *domain.Session, roomID domain.RoomID) error
	History(ctx context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	Disconnect(connID string)
}

// ChatService orchestrates room membership, message persistence, and the
// broadcast fan-out. Transport concerns (framing, handshake, unicast acks)
// stay in the gateway; every failure returned here is wrapped in the
// operation's failure kind and is reported to the requester only.
type ChatService struct {
	log         *slog.Logger
	registry    contract.IRegistry
	rooms       repositories.IRoomRepository
	users       repositories.IUserRepository
	messages    repositories.IMessageRepository
	moderator   *moderation.Moderator
	monitor     *observability.Monitor
	sinkTimeout time.Duration
}

func NewChatService(
	log *slog.Logger,
	registry contract.IRegistry,
	rooms repositories.IRoomRepository,
	users repositories.IUserRepository,
	messages repositories.IMessageRepository,
	moderator *moderation.Moderator,
	monitor *observability.Monitor,
	sinkTimeout time.Duration,
) *ChatService {
	return &ChatService{
		log:         log,
		registry:    registry,
		rooms:       rooms,
		users:       users,
		messages:    messages,
		moderator:   moderator,
		monitor:     monitor,
		sinkTimeout: sinkTimeout,
	}
}

// Register records the verified profile of a freshly authenticated
// connection, making the user resolvable as a message sender.
func (s *ChatService) Register(identity domain.Identity) error {
	if err := s.users.UpsertUser(identity); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrUnauthenticated, err)
	}
	return nil
}

// SendMessage persists the (moderated) body and broadcasts the stored
// record to every connection currently subscribed to the room, including
// the sender's own when subscribed. Nothing is broadcast on failure.
func (s *ChatService) SendMessage(ctx context.Context, session *domain.Session, roomID domain.RoomID, content string) error {
	if s.moderator != nil {
		content = s.moderator.Censor(content)
	}

	message, err := s.messages.CreateMessage(roomID, session.Identity.ID, content)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrDeliveryFailed, err)
	}

	s.broadcast(ctx, event.FromMessage(message))
	return nil
}

// JoinRoom makes the membership durable first; the transport-level
// subscription happens only once storage has accepted the member.
func (s *ChatService) JoinRoom(_ context.Context, session *domain.Session, roomID domain.RoomID) error {
	if err := s.rooms.AddMember(roomID, session.Identity.ID); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrJoinFailed, err)
	}
	s.registry.Subscribe(session.ConnID, roomID)
	s.log.Debug("Joined room", "conn_id", session.ConnID, "user_id", session.Identity.ID, "room_id", roomID)
	return nil
}

// LeaveRoom removes the durable membership and then the transport
// subscription. Failures leave the subscription in place.
func (s *ChatService) LeaveRoom(_ context.Context, session *domain.Session, roomID domain.RoomID) error {
	if err := s.rooms.RemoveMember(roomID, session.Identity.ID); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrLeaveFailed, err)
	}
	s.registry.Unsubscribe(session.ConnID, roomID)
	s.log.Debug("Left room", "conn_id", session.ConnID, "user_id", session.Identity.ID, "room_id", roomID)
	return nil
}

// History pages the room's stored messages, newest first.
func (s *ChatService) History(_ context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	messages, next, err := s.messages.GetMessages(roomID, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errs.ErrHistoryFailed, err)
	}
	return messages, next, nil
}

// Disconnect clears every in-memory trace of the connection. Durable room
// membership is deliberately untouched.
func (s *ChatService) Disconnect(connID string) {
	s.registry.Drop(connID)
}

// broadcast snapshots the room's subscriber set and delivers to exactly
// that snapshot. Each delivery gets its own timeout so one stalled sink
// cannot block the rest.
func (s *ChatService) broadcast(ctx context.Context, evt event.MessageReceived) {
	sinks := s.registry.SinksForRoom(evt.Room)
	s.monitor.IncrMessagesBroadcast()

	for _, sink := range sinks {
		deliveryCtx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
		if err := sink.Consume(deliveryCtx, evt); err != nil {
			s.monitor.IncrDeliveryDrops()
			s.log.Warn("Broadcast delivery failed", "room_id", evt.Room, "error", err)
		} else {
			s.monitor.IncrDeliveries()
		}
		cancel()
	}
}
