package messenger

import (
	"context"
	"log/slog"
	"sync"
)

// Page is the messages view of one authenticated user.
type Page struct {
	UserID        string
	Conversations *Conversations
	Thread        *Thread
	Composer      *Composer

	log    *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPage resolves the session, a missing one yields a *LoginRequiredError
// pointing back to counterpart.
func NewPage(ctx context.Context, backend Backend, log *slog.Logger, counterpart string, options Options) (*Page, error) {
	userID, err := NewSessionResolver(backend, log).Resolve(ctx, counterpart)
	if err != nil {
		return nil, err
	}
	thread := NewThread(backend, log, userID, options)
	return &Page{
		UserID:        userID,
		Conversations: NewConversations(backend, log, userID),
		Thread:        thread,
		Composer:      NewComposer(backend, thread),
		log:           log,
	}, nil
}

// Load fetches the conversation list while the thread opens, then starts the
// conversation list sync. Only the thread load error is returned.
func (p *Page) Load(ctx context.Context, counterpart string) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Conversations.Load(runCtx)
	}()
	err := p.Thread.Open(runCtx, counterpart)
	wg.Wait()

	go func() {
		defer close(p.done)
		if err := p.Conversations.Run(runCtx); err != nil {
			p.log.Warn("Conversation list sync stopped", "error", err)
		}
	}()
	return err
}

// Close tears down the subscriptions and the poller.
func (p *Page) Close() {
	p.Thread.Close()
	if p.cancel != nil {
		p.cancel()
		<-p.done
		p.cancel = nil
	}
}
