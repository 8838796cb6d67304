//go:generate go run go.uber.org/mock/mockgen -source=backend.go -destination=../mocks/mock_backend.go -package=mocks
package messenger

import (
	"context"
	"estate-chat/domain"
	"estate-chat/domain/event"

	"github.com/google/uuid"
)

// Backend is the hosted surface the messenger reads and writes.
// The current user is implied by the session held by the implementation.
type Backend interface {
	// Session returns the authenticated user id, empty when there is none.
	Session(ctx context.Context) (string, error)
	// Inbox returns every message sent or received by the current user, newest first.
	Inbox(ctx context.Context) ([]domain.Message, error)
	// Thread returns the messages exchanged with counterpartID, oldest first.
	Thread(ctx context.Context, counterpartID string) ([]domain.Message, error)
	Insert(ctx context.Context, recipientID, content string) (domain.Message, error)
	// MarkThreadRead stamps the unread messages sent by senderID to the current user.
	MarkThreadRead(ctx context.Context, senderID string) ([]uuid.UUID, error)
	MarkRead(ctx context.Context, id uuid.UUID) (domain.Message, error)
	Profiles(ctx context.Context, ids []string) ([]domain.Profile, error)
	// Subscribe streams the changes of the messages table until ctx is cancelled.
	// The channel is closed when the subscription ends.
	Subscribe(ctx context.Context, types ...event.Type) (<-chan event.ChangeEvent, error)
}
