//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/hex"
	"estate-chat/domain"
	"estate-chat/errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Insert(ctx context.Context, message domain.Message) error
	Get(ctx context.Context, id uuid.UUID) (domain.Message, error)
	// ListForUser returns the messages sent or received by userID, newest first.
	ListForUser(ctx context.Context, userID string) ([]domain.Message, error)
	// ListThread returns the messages matching the thread filter, oldest first.
	ListThread(ctx context.Context, filter domain.ThreadFilter) ([]domain.Message, error)
	// MarkThreadRead stamps every unread message sent by senderID to recipientID
	// and returns the updated rows.
	MarkThreadRead(ctx context.Context, recipientID, senderID string, at time.Time) ([]domain.Message, error)
	// MarkRead stamps one message addressed to recipientID.
	// updated is false when the message was already read.
	MarkRead(ctx context.Context, id uuid.UUID, recipientID string, at time.Time) (msg domain.Message, updated bool, err error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func messageKey(id uuid.UUID) []byte {
	return []byte("msg:" + id.String())
}

// userPrefix hex encodes the user id so the prefix of one user never
// prefixes the keys of another, whatever the id contains.
func userPrefix(userID string) []byte {
	return []byte("idx:user:" + hex.EncodeToString([]byte(userID)) + ":")
}

// userIndexKey is formatted as "idx:user:{hex(user_id)}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent collisions when two messages are created at the same nanosecond.
func userIndexKey(userID string, m domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", userPrefix(userID), m.CreatedAt.UnixNano(), m.ID))
}

// Insert stores the row and indexes it under both participants.
func (r MessageRepository) Insert(_ context.Context, message domain.Message) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ID), encodeMessage(message)); err != nil {
			return err
		}
		if err := txn.Set(userIndexKey(message.SenderID, message), nil); err != nil {
			return err
		}
		if message.RecipientID == message.SenderID {
			return nil
		}
		return txn.Set(userIndexKey(message.RecipientID, message), nil)
	})
}

func (r MessageRepository) Get(_ context.Context, id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = getMessage(txn, id)
		return err
	})
	return message, err
}

// ListForUser scans the user index backwards so the newest message comes first.
// It stops once the configured limitMessages is reached.
func (r MessageRepository) ListForUser(_ context.Context, userID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		ids, err := r.scanUserIndex(txn, userID, true)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if r.limitMessages != nil && len(messages) == *r.limitMessages {
				r.log.Debug(fmt.Sprintf("Maximum of %d message reached", *r.limitMessages))
				break
			}
			m, err := getMessage(txn, id)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	return messages, err
}

// ListThread reads the indexes of both participants and keeps the rows matching the filter.
func (r MessageRepository) ListThread(_ context.Context, filter domain.ThreadFilter) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		seen := make(map[uuid.UUID]struct{})
		for _, participant := range filter.Participants() {
			ids, err := r.scanUserIndex(txn, participant, false)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				m, err := getMessage(txn, id)
				if err != nil {
					return err
				}
				if filter.Match(m) {
					messages = append(messages, m)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	domain.SortAscending(messages)
	return messages, nil
}

func (r MessageRepository) MarkThreadRead(_ context.Context, recipientID, senderID string, at time.Time) ([]domain.Message, error) {
	var updated []domain.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		updated = nil
		ids, err := r.scanUserIndex(txn, recipientID, false)
		if err != nil {
			return err
		}
		for _, id := range ids {
			m, err := getMessage(txn, id)
			if err != nil {
				return err
			}
			if m.SenderID != senderID || !m.IsUnreadFor(recipientID) {
				continue
			}
			readAt := at
			m.ReadAt = &readAt
			if err := txn.Set(messageKey(m.ID), encodeMessage(m)); err != nil {
				return err
			}
			updated = append(updated, m)
		}
		return nil
	})
	return updated, err
}

func (r MessageRepository) MarkRead(_ context.Context, id uuid.UUID, recipientID string, at time.Time) (domain.Message, bool, error) {
	var message domain.Message
	var updated bool
	err := r.db.Update(func(txn *badger.Txn) error {
		m, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		message = m
		if m.RecipientID != recipientID {
			return errors.ErrForbidden
		}
		if m.ReadAt != nil {
			return nil
		}
		readAt := at
		m.ReadAt = &readAt
		if err := txn.Set(messageKey(m.ID), encodeMessage(m)); err != nil {
			return err
		}
		message, updated = m, true
		return nil
	})
	return message, updated, err
}

// scanUserIndex returns the message ids indexed under userID in key order.
func (r MessageRepository) scanUserIndex(txn *badger.Txn, userID string, reverse bool) ([]uuid.UUID, error) {
	prefix := userPrefix(userID)
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	options.Reverse = reverse
	it := txn.NewIterator(options)
	defer it.Close()

	seekKey := prefix
	if reverse {
		seekKey = append(append([]byte(nil), prefix...), 0xFF)
	}

	var ids []uuid.UUID
	for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		// {timestamp_padded}:{uuid}
		rest := key[len(prefix):]
		if len(rest) < 20 || rest[19] != ':' {
			r.log.Warn("Skipping malformed index key", "key", string(key))
			continue
		}
		id, err := uuid.ParseBytes(rest[20:])
		if err != nil {
			r.log.Warn("Skipping malformed index key", "key", string(key), "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getMessage(txn *badger.Txn, id uuid.UUID) (domain.Message, error) {
	item, err := txn.Get(messageKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	err = item.Value(func(val []byte) error {
		message, err = decodeMessage(val)
		return err
	})
	return message, err
}
