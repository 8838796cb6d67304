//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"estate-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// The supervisor restarts it when it panics or fails
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision lifecycle events.
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

// EventSink receives every change event it is subscribed to.
// Consume must honour ctx: the fanout gives each sink a bounded time.
type EventSink interface {
	Consume(ctx context.Context, e event.ChangeEvent) error
}

// IRegistry tracks the realtime connections of each user.
// A user may hold several connections (tabs, devices) at once.
type IRegistry interface {
	GetSinksForUsers(userIDs ...string) []EventSink
	Subscribe(userID, connectionID string, sink EventSink)
	Unsubscribe(userID, connectionID string)
}

// IChangeFeed accepts committed changes of the messages table.
type IChangeFeed interface {
	Publish(e event.ChangeEvent)
}
