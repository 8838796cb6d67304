// Package event defines the change events emitted on the messages table.
package event

import (
	"encoding/json"
	"estate-chat/domain"
	"fmt"
)

const MessagesTable = "messages"

type Type string

const (
	Insert Type = "INSERT"
	Update Type = "UPDATE"
)

// ChangeEvent is a tagged union over MessageInserted and MessageUpdated.
// Consumers switch on the concrete type.
type ChangeEvent interface {
	Table() string
	Type() Type
	Record() domain.Message
	// Origin identifies the process that produced the event, empty for local events.
	Origin() string
	isChangeEvent()
}

type MessageInserted struct {
	Message  domain.Message
	OriginID string
}

func (e MessageInserted) Table() string          { return MessagesTable }
func (e MessageInserted) Type() Type             { return Insert }
func (e MessageInserted) Record() domain.Message { return e.Message }
func (e MessageInserted) Origin() string         { return e.OriginID }
func (MessageInserted) isChangeEvent()           {}

type MessageUpdated struct {
	Message  domain.Message
	OriginID string
}

func (e MessageUpdated) Table() string          { return MessagesTable }
func (e MessageUpdated) Type() Type             { return Update }
func (e MessageUpdated) Record() domain.Message { return e.Message }
func (e MessageUpdated) Origin() string         { return e.OriginID }
func (MessageUpdated) isChangeEvent()           {}

// Frame is the wire representation of a change event on the realtime channel
// and on the cross-instance relay.
type Frame struct {
	Table  string         `json:"table"`
	Type   Type           `json:"type"`
	Record domain.Message `json:"record"`
	Origin string         `json:"origin,omitempty"`
}

func ToFrame(e ChangeEvent) Frame {
	return Frame{Table: e.Table(), Type: e.Type(), Record: e.Record(), Origin: e.Origin()}
}

func FromFrame(f Frame) (ChangeEvent, error) {
	if f.Table != MessagesTable {
		return nil, fmt.Errorf("unsupported table %q", f.Table)
	}
	switch f.Type {
	case Insert:
		return MessageInserted{Message: f.Record, OriginID: f.Origin}, nil
	case Update:
		return MessageUpdated{Message: f.Record, OriginID: f.Origin}, nil
	default:
		return nil, fmt.Errorf("unsupported event type %q", f.Type)
	}
}

func Marshal(e ChangeEvent) ([]byte, error) {
	return json.Marshal(ToFrame(e))
}

func Unmarshal(data []byte) (ChangeEvent, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return FromFrame(f)
}

// ParseTypes turns a comma separated list such as "INSERT,UPDATE" into a set.
// An empty list selects every type.
func ParseTypes(values []string) map[Type]struct{} {
	set := make(map[Type]struct{})
	for _, v := range values {
		switch Type(v) {
		case Insert, Update:
			set[Type(v)] = struct{}{}
		}
	}
	if len(set) == 0 {
		set[Insert] = struct{}{}
		set[Update] = struct{}{}
	}
	return set
}
