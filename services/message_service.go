package services

import (
	"context"
	"estate-chat/contract"
	"estate-chat/domain"
	"estate-chat/domain/event"
	"estate-chat/errors"
	"estate-chat/observability"
	"estate-chat/repositories"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageService interface {
	Send(ctx context.Context, senderID, recipientID, content string) (domain.Message, error)
	Inbox(ctx context.Context, userID string) ([]domain.Message, error)
	Thread(ctx context.Context, userID, counterpartID string) ([]domain.Message, error)
	MarkThreadRead(ctx context.Context, userID, senderID string) ([]uuid.UUID, error)
	MarkRead(ctx context.Context, userID string, id uuid.UUID) (domain.Message, error)
	Search(ctx context.Context, userID, query string) ([]domain.Message, error)
}

// Censor masks the forbidden words of a content.
type Censor interface {
	Censor(content string) (string, []string)
}

type MessageService struct {
	log              *slog.Logger
	messages         repositories.IMessageRepository
	search           repositories.ISearchRepository
	feed             contract.IChangeFeed
	censor           Censor
	monitoring       *observability.MonitoringManager
	maxContentLength int
	searchLimit      int
	now              func() time.Time
}

func NewMessageService(log *slog.Logger, messages repositories.IMessageRepository,
	search repositories.ISearchRepository, feed contract.IChangeFeed, censor Censor,
	monitoring *observability.MonitoringManager, maxContentLength, searchLimit int) *MessageService {
	return &MessageService{
		log:              log,
		messages:         messages,
		search:           search,
		feed:             feed,
		censor:           censor,
		monitoring:       monitoring,
		maxContentLength: maxContentLength,
		searchLimit:      searchLimit,
		now:              time.Now,
	}
}

// Send validates, censors and stores a message then publishes the INSERT change.
func (s *MessageService) Send(ctx context.Context, senderID, recipientID, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return domain.Message{}, errors.ErrMissingReceiver
	}
	// User ids are uuids, the canonical form keeps the index keys of one user together
	recipient, err := uuid.Parse(recipientID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: recipient %q is not a user id", errors.ErrInvalidRequest, recipientID)
	}
	recipientID = recipient.String()
	switch {
	case content == "":
		return domain.Message{}, errors.ErrEmptyContent
	case utf8.RuneCountInString(content) > s.maxContentLength:
		return domain.Message{}, fmt.Errorf("%w: %d runes max", errors.ErrContentTooLong, s.maxContentLength)
	}

	info := whatlanggo.Detect(content)
	sanitized, foundWords := s.censor.Censor(content)
	if len(foundWords) > 0 {
		s.log.Warn("Censored words in message",
			"sender", senderID,
			"lang", info.Lang.Iso6391(),
			"count", len(foundWords))
	}

	message := domain.Message{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     sanitized,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.messages.Insert(ctx, message); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	s.monitoring.IncrMessagesSent()
	s.feed.Publish(event.MessageInserted{Message: message})

	s.log.Debug("Message sent", "id", message.ID, "lang", info.Lang.Iso6391())
	return message, nil
}

func (s *MessageService) Inbox(ctx context.Context, userID string) ([]domain.Message, error) {
	return s.messages.ListForUser(ctx, userID)
}

func (s *MessageService) Thread(ctx context.Context, userID, counterpartID string) ([]domain.Message, error) {
	if counterpartID == "" {
		return nil, errors.ErrInvalidRequest
	}
	return s.messages.ListThread(ctx, domain.NewThreadFilter(userID, counterpartID))
}

// MarkThreadRead stamps the unread messages of senderID addressed to userID
// and publishes one UPDATE change per row.
func (s *MessageService) MarkThreadRead(ctx context.Context, userID, senderID string) ([]uuid.UUID, error) {
	if senderID == "" {
		return nil, errors.ErrInvalidRequest
	}
	updated, err := s.messages.MarkThreadRead(ctx, userID, senderID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark thread read: %w", err)
	}
	for _, m := range updated {
		s.feed.Publish(event.MessageUpdated{Message: m})
	}
	s.monitoring.AddMessagesRead(len(updated))
	return lo.Map(updated, func(m domain.Message, _ int) uuid.UUID { return m.ID }), nil
}

func (s *MessageService) MarkRead(ctx context.Context, userID string, id uuid.UUID) (domain.Message, error) {
	message, updated, err := s.messages.MarkRead(ctx, id, userID, s.now().UTC())
	if err != nil {
		return domain.Message{}, err
	}
	if updated {
		s.feed.Publish(event.MessageUpdated{Message: message})
		s.monitoring.AddMessagesRead(1)
	}
	return message, nil
}

// Search resolves the index hits against the store, newest first.
func (s *MessageService) Search(ctx context.Context, userID, query string) ([]domain.Message, error) {
	ids, err := s.search.Search(ctx, userID, query, s.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	var found []domain.Message
	for _, id := range ids {
		m, err := s.messages.Get(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Debug("Indexed message missing from store", "id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if m.Involves(userID) {
			found = append(found, m)
		}
	}
	slices.SortStableFunc(found, func(a, b domain.Message) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return found, nil
}
