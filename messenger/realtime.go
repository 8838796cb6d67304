package messenger

import (
	"context"
	"estate-chat/domain"
	"estate-chat/domain/event"
)

// apply routes one realtime change to the open thread.
// Rows outside the (user, counterpart) pair are ignored.
func (t *Thread) apply(ctx context.Context, gen uint64, e event.ChangeEvent) {
	record := e.Record()
	t.mu.Lock()
	current, counterpart := gen == t.generation, t.counterpart
	t.mu.Unlock()
	if !current || !domain.BelongsToThread(record, t.userID, counterpart) {
		return
	}

	switch e.(type) {
	case event.MessageInserted:
		t.update(gen, func(messages []domain.Message) []domain.Message {
			if t.options.Mode == ReconcileReplace {
				return append(messages, record)
			}
			return upsert(messages, record)
		})
		if record.IsUnreadFor(t.userID) {
			t.markOneRead(ctx, gen, record.ID)
		}
	case event.MessageUpdated:
		t.update(gen, func(messages []domain.Message) []domain.Message {
			messages, _ = patch(messages, record)
			return messages
		})
	}
}

// apply bumps or creates the summary of the counterpart of an inserted row.
// It returns the counterpart when it was not listed yet.
func (c *Conversations) apply(e event.ChangeEvent) (string, bool) {
	inserted, ok := e.(event.MessageInserted)
	if !ok {
		return "", false
	}
	m := inserted.Message
	if !m.Involves(c.userID) {
		return "", false
	}
	other := m.Counterpart(c.userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].OtherID != other {
			continue
		}
		if !m.CreatedAt.Before(c.items[i].LastAt) {
			c.items[i].LastAt = m.CreatedAt
			c.items[i].LastMessage = m.Content
			c.items[i].LastMessageID = m.ID
			domain.SortByLastAtDesc(c.items)
		}
		return "", false
	}
	c.items = append(c.items, domain.ConversationSummary{
		OtherID:       other,
		LastAt:        m.CreatedAt,
		LastMessage:   m.Content,
		LastMessageID: m.ID,
	})
	domain.SortByLastAtDesc(c.items)
	return other, true
}
