package messenger

import (
	"context"
	"estate-chat/domain"
	"estate-chat/domain/event"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// LoadConversations builds one summary per counterpart from the inbox and decorates
// them with the public profiles. An inbox failure degrades to an empty list,
// a profile failure leaves the names and avatars empty.
func LoadConversations(ctx context.Context, backend Backend, log *slog.Logger, userID string) []domain.ConversationSummary {
	inbox, err := backend.Inbox(ctx)
	if err != nil {
		log.Warn("Conversation list load failed", "error", err)
		return nil
	}
	summaries := domain.Summarize(userID, inbox)
	if len(summaries) == 0 {
		return summaries
	}

	ids := lo.Map(summaries, func(s domain.ConversationSummary, _ int) string { return s.OtherID })
	profiles, err := backend.Profiles(ctx, ids)
	if err != nil {
		log.Warn("Profile lookup failed", "count", len(ids), "error", err)
		return summaries
	}
	domain.Decorate(summaries, profiles)
	return summaries
}

// Conversations is the conversation list kept in sync with the INSERT changes.
type Conversations struct {
	backend Backend
	log     *slog.Logger
	userID  string
	changes chan struct{}
	pending sync.WaitGroup

	mu    sync.Mutex
	items []domain.ConversationSummary
}

func NewConversations(backend Backend, log *slog.Logger, userID string) *Conversations {
	return &Conversations{backend: backend, log: log, userID: userID, changes: make(chan struct{}, 1)}
}

func (c *Conversations) Load(ctx context.Context) {
	items := LoadConversations(ctx, c.backend, c.log, c.userID)
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	c.notify()
}

// Items returns a copy of the summaries, most recent first once a change was applied.
func (c *Conversations) Items() []domain.ConversationSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

func (c *Conversations) Changes() <-chan struct{} {
	return c.changes
}

// Run listens to the inserted rows of the current user until ctx is cancelled.
// Profiles of new counterparts are fetched in the background and patched in.
func (c *Conversations) Run(ctx context.Context) error {
	defer c.pending.Wait()
	events, err := c.backend.Subscribe(ctx, event.Insert)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			other, isNew := c.apply(e)
			c.notify()
			if isNew {
				c.pending.Add(1)
				go c.fetchProfile(ctx, other)
			}
		}
	}
}

func (c *Conversations) fetchProfile(ctx context.Context, id string) {
	defer c.pending.Done()
	profiles, err := c.backend.Profiles(ctx, []string{id})
	if err != nil {
		c.log.Debug("Profile lookup failed", "id", id, "error", err)
		return
	}
	c.mu.Lock()
	domain.Decorate(c.items, profiles)
	c.mu.Unlock()
	c.notify()
}

func (c *Conversations) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}
