package domain

import (
	"slices"
)

// ThreadFilter selects the rows of a 1:1 thread as
// "sender IN {user, counterpart} AND recipient IN {user, counterpart}".
// The predicate is intentionally the pair of IN clauses and not an exact pair
// equality: a row sent by the counterpart to itself matches too.
type ThreadFilter struct {
	User        string
	Counterpart string
}

func NewThreadFilter(user, counterpart string) ThreadFilter {
	return ThreadFilter{User: user, Counterpart: counterpart}
}

// Participants returns the two ids of the IN clauses.
func (f ThreadFilter) Participants() []string {
	return []string{f.User, f.Counterpart}
}

func (f ThreadFilter) Match(m Message) bool {
	return f.in(m.SenderID) && f.in(m.RecipientID)
}

func (f ThreadFilter) in(id string) bool {
	return id == f.User || id == f.Counterpart
}

// BelongsToThread is the client-side scope check applied to realtime rows:
// the message must be exchanged between user and counterpart in either direction.
func BelongsToThread(m Message, user, counterpart string) bool {
	return (m.SenderID == user && m.RecipientID == counterpart) ||
		(m.SenderID == counterpart && m.RecipientID == user)
}

// SortAscending orders messages by creation time, oldest first.
// Messages created at the same instant keep their relative order.
func SortAscending(messages []Message) {
	slices.SortStableFunc(messages, func(a, b Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// IsAscending reports whether created_at never decreases along the slice.
func IsAscending(messages []Message) bool {
	return slices.IsSortedFunc(messages, func(a, b Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
