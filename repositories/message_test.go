package repositories

import (
	"context"
	"estate-chat/domain"
	"estate-chat/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage(sender, recipient, content string, at time.Time) domain.Message {
	return domain.Message{ID: uuid.New(), SenderID: sender, RecipientID: recipient, Content: content, CreatedAt: at}
}

func Test_ListForUser_Newest_First(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil)
	at := time.Now().UTC()

	messages := []domain.Message{
		newMessage("alice", "bob", "Is the flat still available?", at),
		newMessage("bob", "alice", "Yes, visits on Saturday", at.Add(time.Minute)),
		newMessage("carol", "alice", "Hello about the loft", at.Add(2*time.Minute)),
		newMessage("bob", "carol", "unrelated", at.Add(3*time.Minute)),
	}
	for _, m := range messages {
		req.NoError(repository.Insert(ctx, m))
	}

	fetched, err := repository.ListForUser(ctx, "alice")

	req.NoError(err)
	req.Equal([]uuid.UUID{messages[2].ID, messages[1].ID, messages[0].ID},
		lo.Map(fetched, func(m domain.Message, _ int) uuid.UUID { return m.ID }))
	req.Equal(messages[2].Content, fetched[0].Content)
	req.True(messages[2].CreatedAt.Equal(fetched[0].CreatedAt))
}

func Test_ListForUser_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	limit := 2
	repository := NewMessageRepository(openBadger(t), slog.Default(), &limit)
	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		req.NoError(repository.Insert(ctx, newMessage("alice", "bob", "hi", at.Add(time.Duration(i)*time.Second))))
	}

	fetched, err := repository.ListForUser(ctx, "bob")
	req.NoError(err)
	req.Len(fetched, limit)
}

func Test_ListForUser_Self_Message_Indexed_Once(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil)
	req.NoError(repository.Insert(ctx, newMessage("alice", "alice", "note to self", time.Now().UTC())))

	fetched, err := repository.ListForUser(ctx, "alice")
	req.NoError(err)
	req.Len(fetched, 1)
}

func Test_ListThread_Ascending_With_In_Predicate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil)
	at := time.Now().UTC()

	toBob := newMessage("alice", "bob", "first", at)
	toAlice := newMessage("bob", "alice", "second", at.Add(time.Second))
	bobToBob := newMessage("bob", "bob", "self", at.Add(2*time.Second))
	toCarol := newMessage("alice", "carol", "other thread", at.Add(3*time.Second))
	// Inserted out of order
	for _, m := range []domain.Message{bobToBob, toAlice, toCarol, toBob} {
		req.NoError(repository.Insert(ctx, m))
	}

	fetched, err := repository.ListThread(ctx, domain.NewThreadFilter("alice", "bob"))

	req.NoError(err)
	req.True(domain.IsAscending(fetched))
	req.Equal([]uuid.UUID{toBob.ID, toAlice.ID, bobToBob.ID},
		lo.Map(fetched, func(m domain.Message, _ int) uuid.UUID { return m.ID }))
}

func Test_MarkThreadRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil)
	at := time.Now().UTC()

	fromBob1 := newMessage("bob", "alice", "one", at)
	fromBob2 := newMessage("bob", "alice", "two", at.Add(time.Second))
	fromAlice := newMessage("alice", "bob", "three", at.Add(2*time.Second))
	fromCarol := newMessage("carol", "alice", "four", at.Add(3*time.Second))
	for _, m := range []domain.Message{fromBob1, fromBob2, fromAlice, fromCarol} {
		req.NoError(repository.Insert(ctx, m))
	}

	// When alice opens the thread with bob
	readAt := at.Add(time.Minute)
	updated, err := repository.MarkThreadRead(ctx, "alice", "bob", readAt)

	// Then only bob's messages to alice are stamped
	req.NoError(err)
	req.Len(updated, 2)
	for _, m := range updated {
		req.NotNil(m.ReadAt)
		req.True(readAt.Equal(*m.ReadAt))
	}

	stored, err := repository.Get(ctx, fromAlice.ID)
	req.NoError(err)
	req.Nil(stored.ReadAt)
	stored, err = repository.Get(ctx, fromCarol.ID)
	req.NoError(err)
	req.Nil(stored.ReadAt)

	// And a second pass changes nothing
	updated, err = repository.MarkThreadRead(ctx, "alice", "bob", readAt.Add(time.Minute))
	req.NoError(err)
	req.Empty(updated)
	stored, err = repository.Get(ctx, fromBob1.ID)
	req.NoError(err)
	req.True(readAt.Equal(*stored.ReadAt))
}

func Test_MarkRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil)
	m := newMessage("bob", "alice", "one", time.Now().UTC())
	req.NoError(repository.Insert(ctx, m))

	// The sender cannot mark it read
	_, updated, err := repository.MarkRead(ctx, m.ID, "bob", time.Now())
	req.ErrorIs(err, errors.ErrForbidden)
	req.False(updated)

	// The recipient can, once
	stored, updated, err := repository.MarkRead(ctx, m.ID, "alice", time.Now())
	req.NoError(err)
	req.True(updated)
	req.NotNil(stored.ReadAt)

	_, updated, err = repository.MarkRead(ctx, m.ID, "alice", time.Now())
	req.NoError(err)
	req.False(updated)

	_, _, err = repository.MarkRead(ctx, uuid.New(), "alice", time.Now())
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Get_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil)
	_, err := repository.Get(context.Background(), uuid.New())
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_User_Index_Is_Isolated_Per_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := openBadger(t)
	repository := NewMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()

	legit := newMessage("alice", "bob", "Is the flat still available?", at)
	req.NoError(repository.Insert(ctx, legit))
	// An id extending another one must not land under its index
	req.NoError(repository.Insert(ctx, newMessage("mallory", "bob:x", "hijack", at.Add(time.Second))))
	// A key that cannot be parsed is skipped
	req.NoError(db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(userPrefix("bob"), []byte("garbage")...), nil)
	}))

	inbox, err := repository.ListForUser(ctx, "bob")
	req.NoError(err)
	req.Equal([]uuid.UUID{legit.ID}, lo.Map(inbox, func(m domain.Message, _ int) uuid.UUID { return m.ID }))

	thread, err := repository.ListThread(ctx, domain.NewThreadFilter("bob", "alice"))
	req.NoError(err)
	req.Len(thread, 1)

	read, err := repository.MarkThreadRead(ctx, "bob", "alice", at.Add(time.Minute))
	req.NoError(err)
	req.Len(read, 1)

	hijacked, err := repository.ListForUser(ctx, "bob:x")
	req.NoError(err)
	req.Len(hijacked, 1)
}
