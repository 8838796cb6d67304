package sink

import (
	"context"
	"estate-chat/domain/event"
	"fmt"
	"sync"
)

var ErrConnectionClosed = fmt.Errorf("connection closed")

// RealtimeSink buffers the changes of one websocket connection.
// The connection writer drains Events until Done is closed.
type RealtimeSink struct {
	UserID       string
	ConnectionID string
	types        map[event.Type]struct{}
	events       chan event.ChangeEvent
	done         chan struct{}
	once         sync.Once
}

func NewRealtimeSink(userID, connectionID string, types map[event.Type]struct{}, bufferSize int) *RealtimeSink {
	return &RealtimeSink{
		UserID:       userID,
		ConnectionID: connectionID,
		types:        types,
		events:       make(chan event.ChangeEvent, bufferSize),
		done:         make(chan struct{}),
	}
}

// Consume queues the change when its type was subscribed.
// A full buffer blocks until ctx expires, the change is then lost for this connection.
func (s *RealtimeSink) Consume(ctx context.Context, e event.ChangeEvent) error {
	if _, ok := s.types[e.Type()]; !ok {
		return nil
	}
	select {
	case <-s.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RealtimeSink) Events() <-chan event.ChangeEvent { return s.events }

func (s *RealtimeSink) Done() <-chan struct{} { return s.done }

// Close is idempotent, the events channel is left open so late producers never panic.
func (s *RealtimeSink) Close() {
	s.once.Do(func() { close(s.done) })
}
