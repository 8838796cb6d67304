package messenger

import (
	"estate-chat/domain"
	"time"

	"github.com/google/uuid"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func row(sender, recipient, content string, seconds int) domain.Message {
	return domain.Message{ID: uuid.New(), SenderID: sender, RecipientID: recipient, Content: content, CreatedAt: at(seconds)}
}

func ids(messages []domain.Message) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
