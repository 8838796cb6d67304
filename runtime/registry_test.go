package runtime

import (
	"context"
	"estate-chat/domain/event"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.ChangeEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_User_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	connectionID := uuid.NewString()
	sink := Sink{name: "tab"}

	// Given no user is connected
	req.Empty(registry.Sessions)
	req.Empty(registry.Connections)

	// When a user opens a connection
	registry.Subscribe(userID, connectionID, sink)

	// Then
	req.Len(registry.Sessions, 1)
	req.Equal(sink, registry.Sessions[connectionID])
	req.Len(registry.Connections, 1)
	req.Contains(registry.Connections[userID], connectionID)
	req.Equal(1, registry.CountConnections())

	sinks := registry.GetSinksForUsers(userID)
	req.Len(sinks, 1)
	req.Contains(sinks, sink)
}

func TestRegistry_Subscribe_One_User_Multiple_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()

	// When the same user opens two tabs
	registry.Subscribe(userID, "c1", Sink{name: "tab1"})
	registry.Subscribe(userID, "c2", Sink{name: "tab2"})

	// Then both tabs receive the events
	req.Len(registry.Sessions, 2)
	req.Len(registry.Connections[userID], 2)
	req.Len(registry.GetSinksForUsers(userID), 2)
}

func TestRegistry_GetSinksForUsers_Sender_And_Recipient(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Subscribe("sender", "c1", Sink{name: "sender"})
	registry.Subscribe("recipient", "c2", Sink{name: "recipient"})
	registry.Subscribe("stranger", "c3", Sink{name: "stranger"})

	sinks := registry.GetSinksForUsers("sender", "recipient")

	req.Len(sinks, 2)
	req.NotContains(sinks, Sink{name: "stranger"})
}

func TestRegistry_GetSinksForUsers_Same_User_Twice(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Subscribe("u1", "c1", Sink{name: "tab"})

	req.Len(registry.GetSinksForUsers("u1", "u1"), 1)
}

func TestRegistry_Unsubscribe_Cleans_Empty_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Subscribe("u1", "c1", Sink{name: "tab1"})
	registry.Subscribe("u1", "c2", Sink{name: "tab2"})

	// When one tab closes
	registry.Unsubscribe("u1", "c1")

	// Then the other one is still subscribed
	req.Len(registry.Connections["u1"], 1)
	req.Len(registry.GetSinksForUsers("u1"), 1)

	// When the last tab closes
	registry.Unsubscribe("u1", "c2")

	// Then no entry is left for the user
	req.Empty(registry.Connections)
	req.Empty(registry.Sessions)
	req.Empty(registry.GetSinksForUsers("u1"))
}

func TestRegistry_Unsubscribe_Unknown_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	req.NotPanics(func() { registry.Unsubscribe("ghost", "c0") })
}
