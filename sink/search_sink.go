package sink

import (
	"context"
	"estate-chat/domain/event"
	"estate-chat/repositories"
	"log/slog"
)

// SearchSink feeds the full-text index from the change feed.
type SearchSink struct {
	repository repositories.ISearchRepository
	log        *slog.Logger
}

func NewSearchSink(repository repositories.ISearchRepository, log *slog.Logger) SearchSink {
	return SearchSink{repository: repository, log: log}
}

func (s SearchSink) Consume(ctx context.Context, e event.ChangeEvent) error {
	switch evt := e.(type) {
	case event.MessageInserted:
		if evt.OriginID != "" {
			// Relayed events are indexed by the instance that stored them
			return nil
		}
		return s.repository.Index(ctx, evt.Message)
	default:
		s.log.Debug("Search index ignores event", "type", e.Type())
		return nil
	}
}
