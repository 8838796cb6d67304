package messenger

import (
	"context"
	"estate-chat/domain"
	"estate-chat/errors"
	"strings"
	"sync"
)

// Composer holds the outbound text of the open thread.
type Composer struct {
	backend Backend
	thread  *Thread

	mu    sync.Mutex
	draft string
}

func NewComposer(backend Backend, thread *Thread) *Composer {
	return &Composer{backend: backend, thread: thread}
}

func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// CanSend requires a selected counterpart and a non blank draft.
func (c *Composer) CanSend() bool {
	return c.thread.Counterpart() != "" && strings.TrimSpace(c.Draft()) != ""
}

// Send inserts the trimmed draft and appends the stored row to the thread.
// The draft is cleared before the insert and stays cleared when it fails.
// Without counterpart or text nothing is inserted and ErrNothingToSend is returned.
func (c *Composer) Send(ctx context.Context) (domain.Message, error) {
	gen, counterpart := c.thread.snapshot()

	c.mu.Lock()
	content := strings.TrimSpace(c.draft)
	if counterpart == "" || content == "" {
		c.mu.Unlock()
		return domain.Message{}, errors.ErrNothingToSend
	}
	c.draft = ""
	c.mu.Unlock()

	message, err := c.backend.Insert(ctx, counterpart, content)
	if err != nil {
		return domain.Message{}, err
	}
	c.thread.appendSent(gen, message)
	return message, nil
}
