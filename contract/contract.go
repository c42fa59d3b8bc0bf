//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/vanthaita/piratesocial-chat/domain"
	"github.com/vanthaita/piratesocial-chat/domain/event"
)

// EventSink is one delivery target for outbound events.
// Consume must return once the context is done; it must never block a
// broadcast indefinitely.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks live connections and their transport-level room
// subscriptions. It is the process-wide room -> subscriber mapping read by
// every broadcast.
type IRegistry interface {
	Register(connID string, sink EventSink)
	Subscribe(connID string, roomID domain.RoomID)
	Unsubscribe(connID string, roomID domain.RoomID)
	Drop(connID string)
	SinksForRoom(roomID domain.RoomID) []EventSink
}

// ISessionStore maps a live connection to its authenticated identity.
type ISessionStore interface {
	Bind(connID string, identity domain.Identity) *domain.Session
	Get(connID string) (*domain.Session, bool)
	Remove(connID string)
	Count() int
}

type WorkerName string

// Worker doesn't protect itself; supervision is the supervisor's job.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used for logging during supervision without forcing a naming method onto
// the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
