package messenger

import (
	"estate-chat/domain"

	"github.com/google/uuid"
)

// ReconcileMode decides how polled threads and realtime rows meet the local state.
type ReconcileMode int

const (
	// ReconcileMerge unions rows by id, keeps the latest read_at and re-sorts.
	// Realtime echoes of optimistic appends never render twice.
	ReconcileMerge ReconcileMode = iota
	// ReconcileReplace mirrors the legacy page: a poll replaces the whole list,
	// realtime and composer rows are appended without de-duplication.
	ReconcileReplace
)

func (m ReconcileMode) String() string {
	switch m {
	case ReconcileMerge:
		return "merge"
	case ReconcileReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// ParseReconcileMode accepts "merge" and "replace", anything else is merge.
func ParseReconcileMode(s string) ReconcileMode {
	if s == "replace" {
		return ReconcileReplace
	}
	return ReconcileMerge
}

// mergeRow keeps the fields of the incoming row and the latest non-nil read_at.
func mergeRow(current, incoming domain.Message) domain.Message {
	merged := incoming
	if current.ReadAt != nil && (incoming.ReadAt == nil || current.ReadAt.After(*incoming.ReadAt)) {
		merged.ReadAt = current.ReadAt
	}
	return merged
}

// mergeThread unions both lists by id and returns them oldest first.
// Rows only known locally are kept, a later poll cannot erase them.
func mergeThread(current, fetched []domain.Message) []domain.Message {
	merged := make([]domain.Message, 0, len(current)+len(fetched))
	index := make(map[uuid.UUID]int, len(current)+len(fetched))
	for _, m := range current {
		if i, ok := index[m.ID]; ok {
			merged[i] = mergeRow(merged[i], m)
			continue
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}
	for _, m := range fetched {
		if i, ok := index[m.ID]; ok {
			merged[i] = mergeRow(merged[i], m)
			continue
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
	}
	domain.SortAscending(merged)
	return merged
}

// upsert inserts a new row in order or merges it into the row with the same id.
func upsert(messages []domain.Message, m domain.Message) []domain.Message {
	for i := range messages {
		if messages[i].ID == m.ID {
			messages[i] = mergeRow(messages[i], m)
			return messages
		}
	}
	messages = append(messages, m)
	domain.SortAscending(messages)
	return messages
}

// patch merges m into every row sharing its id, unknown rows are ignored.
func patch(messages []domain.Message, m domain.Message) ([]domain.Message, bool) {
	found := false
	for i := range messages {
		if messages[i].ID == m.ID {
			messages[i] = mergeRow(messages[i], m)
			found = true
		}
	}
	return messages, found
}
