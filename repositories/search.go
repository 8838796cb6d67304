//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"
	"estate-chat/domain"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	fieldContent     = "content"
	fieldParticipant = "participant"
	fieldCreatedAt   = "created_at"
)

type ISearchRepository interface {
	Index(ctx context.Context, message domain.Message) error
	// Search returns the ids of the messages of userID matching the query, best match first.
	Search(ctx context.Context, userID, query string, limit int) ([]uuid.UUID, error)
}

type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger) SearchRepository {
	return SearchRepository{writer: writer, log: log}
}

// Index adds the content of the message, visible to both participants.
func (r SearchRepository) Index(_ context.Context, message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField(fieldContent, message.Content)).
		AddField(bluge.NewKeywordField(fieldParticipant, message.SenderID)).
		AddField(bluge.NewDateTimeField(fieldCreatedAt, message.CreatedAt))
	if message.RecipientID != message.SenderID {
		doc.AddField(bluge.NewKeywordField(fieldParticipant, message.RecipientID))
	}
	if err := r.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", message.ID, err)
	}
	return nil
}

func (r SearchRepository) Search(ctx context.Context, userID, query string, limit int) ([]uuid.UUID, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	reader, err := r.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField(fieldContent)).
		AddMust(bluge.NewTermQuery(userID).SetField(fieldParticipant))

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				id, parseErr := uuid.ParseBytes(value)
				if parseErr != nil {
					r.log.Warn("Skipping document with invalid id", "id", string(value))
					return false
				}
				ids = append(ids, id)
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}
