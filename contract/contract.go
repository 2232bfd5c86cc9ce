//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/havaian/gossip/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself, the supervisor restarts it after a panic
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker for logging.
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

// EventSink receives every event routed to it, in publication order.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps rooms to the connections subscribed to them.
type IRegistry interface {
	GetSinksForRoom(roomID string) []EventSink
	Subscribe(connectionID, roomID string, sink EventSink)
	Unsubscribe(connectionID, roomID string)
	UnsubscribeAll(connectionID string)
}

// Publisher hands a domain event over to the fan-out. It never blocks the caller.
type Publisher interface {
	Publish(e event.DomainEvent)
}
