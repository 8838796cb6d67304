package messenger

import (
	"context"
	"errors"
	"estate-chat/domain"
	"estate-chat/domain/event"
	"estate-chat/mocks"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type threadFixture struct {
	backend *mocks.MockBackend
	thread  *Thread
	events  chan event.ChangeEvent
}

func newThreadFixture(t *testing.T, options Options) threadFixture {
	backend := mocks.NewMockBackend(gomock.NewController(t))
	if options.PollInterval == 0 {
		options.PollInterval = time.Hour
	}
	f := threadFixture{
		backend: backend,
		thread:  NewThread(backend, logs.GetLoggerFromLevel(slog.LevelDebug), "u1", options),
		events:  make(chan event.ChangeEvent, 8),
	}
	t.Cleanup(f.thread.Close)
	return f
}

func (f threadFixture) expectSubscribe() {
	f.backend.EXPECT().Subscribe(gomock.Any(), event.Insert, event.Update).
		Return((<-chan event.ChangeEvent)(f.events), nil).AnyTimes()
}

func (f threadFixture) open(t *testing.T, initial []domain.Message, readIDs []uuid.UUID) {
	f.backend.EXPECT().Thread(gomock.Any(), "u2").Return(initial, nil).Times(1)
	f.backend.EXPECT().MarkThreadRead(gomock.Any(), "u2").Return(readIDs, nil).Times(1)
	f.expectSubscribe()
	require.NoError(t, f.thread.Open(context.Background(), "u2"))
}

func TestThread_Open_Loads_And_Marks_Read(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{})
	m1 := row("u2", "u1", "Is it still available?", 1)
	m2 := row("u1", "u2", "Yes", 2)
	m3 := row("u2", "u1", "Can I visit?", 3)

	f.open(t, []domain.Message{m1, m2, m3}, []uuid.UUID{m1.ID, m3.ID})

	messages := f.thread.Messages()
	req.Equal(ids([]domain.Message{m1, m2, m3}), ids(messages))
	req.True(domain.IsAscending(messages))
	req.NotNil(messages[0].ReadAt)
	req.Nil(messages[1].ReadAt)
	req.NotNil(messages[2].ReadAt)
	req.Equal("u2", f.thread.Counterpart())
}

func TestThread_Open_Without_Counterpart_Fetches_Nothing(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{})

	req.NoError(f.thread.Open(context.Background(), ""))
	req.Empty(f.thread.Messages())
	req.Empty(f.thread.Counterpart())
}

func TestThread_Open_Failure_Keeps_Polling(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{PollInterval: 20 * time.Millisecond})
	m1 := row("u2", "u1", "hello", 1)
	failure := errors.New("backend unavailable")

	f.backend.EXPECT().Thread(gomock.Any(), "u2").Return(nil, failure).Times(1)
	f.backend.EXPECT().Thread(gomock.Any(), "u2").Return([]domain.Message{m1}, nil).AnyTimes()
	f.expectSubscribe()

	req.ErrorIs(f.thread.Open(context.Background(), "u2"), failure)
	req.Eventually(func() bool { return len(f.thread.Messages()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestThread_Realtime_Insert(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{})
	m1 := row("u1", "u2", "hola", 1)
	f.open(t, []domain.Message{m1}, nil)

	incoming := row("u2", "u1", "qué tal", 2)
	read := incoming
	read.ReadAt = ptr(at(3))
	f.backend.EXPECT().MarkRead(gomock.Any(), incoming.ID).Return(read, nil).Times(1)

	// Rows of another pair never reach the thread
	f.events <- event.MessageInserted{Message: row("u3", "u1", "other thread", 2)}
	f.events <- event.MessageInserted{Message: row("u2", "u3", "other thread", 2)}
	f.events <- event.MessageInserted{Message: incoming}

	req.Eventually(func() bool {
		messages := f.thread.Messages()
		return len(messages) == 2 && messages[1].ReadAt != nil
	}, time.Second, 10*time.Millisecond)
	req.Equal(ids([]domain.Message{m1, incoming}), ids(f.thread.Messages()))
}

func TestThread_Realtime_Update_Patches_Row(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{})
	m1 := row("u1", "u2", "hola", 1)
	f.open(t, []domain.Message{m1}, nil)

	read := m1
	read.ReadAt = ptr(at(5))
	f.events <- event.MessageUpdated{Message: read}

	req.Eventually(func() bool {
		messages := f.thread.Messages()
		return len(messages) == 1 && messages[0].ReadAt != nil
	}, time.Second, 10*time.Millisecond)
}

func TestThread_Echo_Deduplication(t *testing.T) {
	tests := []struct {
		name     string
		mode     ReconcileMode
		expected int
	}{
		{"merge renders the echo once", ReconcileMerge, 2},
		{"replace appends the echo again", ReconcileReplace, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newThreadFixture(t, Options{Mode: tt.mode})
			m1 := row("u1", "u2", "hola", 1)
			f.open(t, []domain.Message{m1}, nil)

			sent := row("u1", "u2", "qué tal", 2)
			f.backend.EXPECT().Insert(gomock.Any(), "u2", "qué tal").Return(sent, nil).Times(1)
			composer := NewComposer(f.backend, f.thread)
			composer.SetDraft("qué tal")
			_, err := composer.Send(context.Background())
			req.NoError(err)

			f.events <- event.MessageInserted{Message: sent}
			req.Eventually(func() bool {
				return len(f.thread.Messages()) == tt.expected
			}, time.Second, 10*time.Millisecond)
			time.Sleep(20 * time.Millisecond)
			req.Len(f.thread.Messages(), tt.expected)
		})
	}
}

func TestThread_Polling_Eventually_Includes_Persisted_Rows(t *testing.T) {
	tests := []struct {
		name string
		mode ReconcileMode
	}{
		{"merge", ReconcileMerge},
		{"replace", ReconcileReplace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newThreadFixture(t, Options{Mode: tt.mode, PollInterval: 20 * time.Millisecond})
			m1 := row("u1", "u2", "hola", 1)
			m2 := row("u2", "u1", "persisted later", 2)

			var mu sync.Mutex
			persisted := []domain.Message{m1}
			f.backend.EXPECT().Thread(gomock.Any(), "u2").DoAndReturn(
				func(context.Context, string) ([]domain.Message, error) {
					mu.Lock()
					defer mu.Unlock()
					return append([]domain.Message(nil), persisted...), nil
				}).AnyTimes()
			f.backend.EXPECT().MarkThreadRead(gomock.Any(), "u2").Return(nil, nil)
			f.expectSubscribe()
			req.NoError(f.thread.Open(context.Background(), "u2"))
			req.Len(f.thread.Messages(), 1)

			mu.Lock()
			persisted = append(persisted, m2)
			mu.Unlock()

			req.Eventually(func() bool {
				return len(f.thread.Messages()) == 2
			}, time.Second, 10*time.Millisecond)
			req.Equal(ids([]domain.Message{m1, m2}), ids(f.thread.Messages()))
		})
	}
}

func TestThread_Replace_Poll_Can_Erase_Unpersisted_Row(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{Mode: ReconcileReplace})
	m1 := row("u1", "u2", "hola", 1)
	f.open(t, []domain.Message{m1}, nil)
	gen, _ := f.thread.snapshot()

	f.thread.appendSent(gen, row("u1", "u2", "not visible yet", 2))
	req.Len(f.thread.Messages(), 2)

	f.backend.EXPECT().Thread(gomock.Any(), "u2").Return([]domain.Message{m1}, nil)
	f.thread.poll(context.Background(), gen, "u2")
	req.Len(f.thread.Messages(), 1)
}

func TestThread_Stale_Results_Are_Dropped(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{})
	f.open(t, []domain.Message{row("u1", "u2", "hola", 1)}, nil)
	stale, _ := f.thread.snapshot()

	f.thread.Close()
	req.Empty(f.thread.Messages())

	req.False(f.thread.update(stale, func(messages []domain.Message) []domain.Message {
		return append(messages, row("u1", "u2", "late", 2))
	}))
	f.thread.apply(context.Background(), stale, event.MessageInserted{Message: row("u2", "u1", "late", 3)})
	req.Empty(f.thread.Messages())
}

func TestThread_Switching_Counterpart(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{})
	f.open(t, []domain.Message{row("u1", "u2", "hola", 1)}, nil)

	m3 := row("u3", "u1", "hello from u3", 2)
	f.backend.EXPECT().Thread(gomock.Any(), "u3").Return([]domain.Message{m3}, nil)
	f.backend.EXPECT().MarkThreadRead(gomock.Any(), "u3").Return([]uuid.UUID{m3.ID}, nil)
	req.NoError(f.thread.Open(context.Background(), "u3"))

	req.Equal("u3", f.thread.Counterpart())
	req.Equal([]uuid.UUID{m3.ID}, ids(f.thread.Messages()))
}

func TestThread_Subscription_Failure_Is_Silent(t *testing.T) {
	req := require.New(t)
	f := newThreadFixture(t, Options{PollInterval: 20 * time.Millisecond})
	m1 := row("u1", "u2", "hola", 1)
	f.backend.EXPECT().Thread(gomock.Any(), "u2").Return([]domain.Message{m1}, nil).MinTimes(2)
	f.backend.EXPECT().MarkThreadRead(gomock.Any(), "u2").Return(nil, nil)
	f.backend.EXPECT().Subscribe(gomock.Any(), event.Insert, event.Update).Return(nil, errors.New("refused"))

	req.NoError(f.thread.Open(context.Background(), "u2"))
	time.Sleep(80 * time.Millisecond)
	req.Len(f.thread.Messages(), 1)
}
