package messenger

import (
	"context"
	"estate-chat/domain"
	"estate-chat/domain/event"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultPollInterval = 4 * time.Second

type Options struct {
	PollInterval time.Duration
	Mode         ReconcileMode
}

// Thread is the open conversation with one counterpart.
// Its rows are written by the initial load, the realtime listener, the poller
// and the composer. Every asynchronous result is tagged with the generation it
// was started under and dropped when the thread was closed or switched since.
type Thread struct {
	backend Backend
	log     *slog.Logger
	userID  string
	options Options
	now     func() time.Time
	changes chan struct{}

	mu          sync.Mutex
	generation  uint64
	counterpart string
	messages    []domain.Message
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewThread(backend Backend, log *slog.Logger, userID string, options Options) *Thread {
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	return &Thread{
		backend: backend,
		log:     log,
		userID:  userID,
		options: options,
		now:     time.Now,
		changes: make(chan struct{}, 1),
	}
}

// Open loads the thread with counterpart, marks it read, then keeps it in sync
// through realtime and polling until Close, another Open or ctx cancellation.
// An empty counterpart only closes the current thread.
// A load failure is returned but the thread stays open, polling retries it.
func (t *Thread) Open(ctx context.Context, counterpart string) error {
	t.Close()
	if counterpart == "" {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.counterpart = counterpart
	t.messages = nil
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	fetched, err := t.backend.Thread(loopCtx, counterpart)
	if err != nil {
		t.log.Error("Thread load failed", "counterpart", counterpart, "error", err)
	} else if t.update(gen, func(current []domain.Message) []domain.Message {
		return t.reconcile(current, fetched)
	}) {
		t.markThreadRead(loopCtx, gen, counterpart)
	}

	go t.run(loopCtx, gen, counterpart, done)
	return err
}

// Close stops the realtime listener and the poller and clears the rows.
func (t *Thread) Close() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.generation++
	t.counterpart = ""
	t.messages = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	t.notify()
}

// Messages returns a copy of the rows, oldest first.
func (t *Thread) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.messages)
}

// Counterpart is empty when no conversation is selected.
func (t *Thread) Counterpart() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counterpart
}

// Changes is signalled after every visible change, a slow reader only misses intermediate states.
func (t *Thread) Changes() <-chan struct{} {
	return t.changes
}

func (t *Thread) run(ctx context.Context, gen uint64, counterpart string, done chan struct{}) {
	defer close(done)

	events, err := t.backend.Subscribe(ctx, event.Insert, event.Update)
	if err != nil && ctx.Err() == nil {
		t.log.Warn("Realtime subscription failed, relying on polling", "error", err)
	}

	ticker := time.NewTicker(t.options.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					t.log.Warn("Realtime channel closed, relying on polling", "counterpart", counterpart)
				}
				events = nil
				continue
			}
			t.apply(ctx, gen, e)
		case <-ticker.C:
			t.poll(ctx, gen, counterpart)
		}
	}
}

// poll re-fetches the whole thread, without marking it read.
func (t *Thread) poll(ctx context.Context, gen uint64, counterpart string) {
	fetched, err := t.backend.Thread(ctx, counterpart)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Debug("Thread poll failed", "counterpart", counterpart, "error", err)
		}
		return
	}
	t.update(gen, func(current []domain.Message) []domain.Message {
		return t.reconcile(current, fetched)
	})
}

func (t *Thread) reconcile(current, fetched []domain.Message) []domain.Message {
	if t.options.Mode == ReconcileReplace {
		return slices.Clone(fetched)
	}
	return mergeThread(current, fetched)
}

// markThreadRead stamps locally the rows the backend reports as updated.
func (t *Thread) markThreadRead(ctx context.Context, gen uint64, counterpart string) {
	ids, err := t.backend.MarkThreadRead(ctx, counterpart)
	if err != nil {
		t.log.Warn("Mark thread read failed", "counterpart", counterpart, "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	readAt := t.now().UTC()
	updated := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		updated[id] = struct{}{}
	}
	t.update(gen, func(current []domain.Message) []domain.Message {
		for i := range current {
			if _, ok := updated[current[i].ID]; ok && current[i].ReadAt == nil {
				current[i].ReadAt = &readAt
			}
		}
		return current
	})
}

func (t *Thread) markOneRead(ctx context.Context, gen uint64, id uuid.UUID) {
	message, err := t.backend.MarkRead(ctx, id)
	if err != nil {
		t.log.Warn("Mark read failed", "id", id, "error", err)
		return
	}
	t.update(gen, func(current []domain.Message) []domain.Message {
		current, _ = patch(current, message)
		return current
	})
}

// appendSent adds the row returned by a successful insert.
func (t *Thread) appendSent(gen uint64, m domain.Message) {
	t.update(gen, func(current []domain.Message) []domain.Message {
		if t.options.Mode == ReconcileReplace {
			return append(current, m)
		}
		return upsert(current, m)
	})
}

// snapshot returns the generation and counterpart a caller starts an asynchronous step under.
func (t *Thread) snapshot() (uint64, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation, t.counterpart
}

// update applies fn when gen is still the open thread and reports whether it did.
func (t *Thread) update(gen uint64, fn func([]domain.Message) []domain.Message) bool {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return false
	}
	t.messages = fn(t.messages)
	t.mu.Unlock()
	t.notify()
	return true
}

func (t *Thread) notify() {
	select {
	case t.changes <- struct{}{}:
	default:
	}
}
