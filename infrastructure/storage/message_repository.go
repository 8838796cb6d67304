package storage

import (
	"context"
	"estate-chat/domain"
	"estate-chat/errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var messageColumns = []string{"id::text", "sender_id", "recipient_id", "content", "created_at", "read_at"}

type MessageRepository struct {
	db            Querier
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db Querier, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func (r MessageRepository) Insert(ctx context.Context, m domain.Message) error {
	sql, args, err := insertMessageQuery(m).ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r MessageRepository) Get(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	sql, args, err := psql.Select(messageColumns...).From("messages").
		Where(squirrel.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return domain.Message{}, err
	}
	m, err := scanMessage(r.db.QueryRow(ctx, sql, args...))
	if err == pgx.ErrNoRows {
		return domain.Message{}, errors.ErrNotFound
	}
	return m, err
}

func (r MessageRepository) ListForUser(ctx context.Context, userID string) ([]domain.Message, error) {
	sql, args, err := inboxQuery(userID, r.limitMessages).ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryMessages(ctx, sql, args)
}

func (r MessageRepository) ListThread(ctx context.Context, filter domain.ThreadFilter) ([]domain.Message, error) {
	sql, args, err := threadQuery(filter).ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryMessages(ctx, sql, args)
}

func (r MessageRepository) MarkThreadRead(ctx context.Context, recipientID, senderID string, at time.Time) ([]domain.Message, error) {
	sql, args, err := markThreadReadQuery(recipientID, senderID, at).ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryMessages(ctx, sql, args)
}

// MarkRead only touches an unread row addressed to recipientID,
// the row is read back to tell the reason when nothing was updated.
func (r MessageRepository) MarkRead(ctx context.Context, id uuid.UUID, recipientID string, at time.Time) (domain.Message, bool, error) {
	sql, args, err := markReadQuery(id, recipientID, at).ToSql()
	if err != nil {
		return domain.Message{}, false, err
	}
	m, err := scanMessage(r.db.QueryRow(ctx, sql, args...))
	if err == nil {
		return m, true, nil
	}
	if err != pgx.ErrNoRows {
		return domain.Message{}, false, err
	}

	m, err = r.Get(ctx, id)
	if err != nil {
		return domain.Message{}, false, err
	}
	if m.RecipientID != recipientID {
		return m, false, errors.ErrForbidden
	}
	return m, false, nil
}

func (r MessageRepository) queryMessages(ctx context.Context, sql string, args []any) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func insertMessageQuery(m domain.Message) squirrel.InsertBuilder {
	return psql.Insert("messages").
		Columns("id", "sender_id", "recipient_id", "content", "created_at").
		Values(m.ID.String(), m.SenderID, m.RecipientID, m.Content, m.CreatedAt)
}

func inboxQuery(userID string, limit *int) squirrel.SelectBuilder {
	q := psql.Select(messageColumns...).From("messages").
		Where(squirrel.Or{squirrel.Eq{"sender_id": userID}, squirrel.Eq{"recipient_id": userID}}).
		OrderBy("created_at DESC")
	if limit != nil {
		q = q.Limit(uint64(*limit))
	}
	return q
}

// threadQuery keeps the pair of IN clauses of the thread filter.
func threadQuery(filter domain.ThreadFilter) squirrel.SelectBuilder {
	participants := filter.Participants()
	return psql.Select(messageColumns...).From("messages").
		Where(squirrel.Eq{"sender_id": participants}).
		Where(squirrel.Eq{"recipient_id": participants}).
		OrderBy("created_at ASC")
}

func markThreadReadQuery(recipientID, senderID string, at time.Time) squirrel.UpdateBuilder {
	return psql.Update("messages").
		Set("read_at", at).
		Where(squirrel.Eq{"recipient_id": recipientID}).
		Where(squirrel.Eq{"sender_id": senderID}).
		Where(squirrel.Eq{"read_at": nil}).
		Suffix("RETURNING " + strings.Join(messageColumns, ", "))
}

func markReadQuery(id uuid.UUID, recipientID string, at time.Time) squirrel.UpdateBuilder {
	return psql.Update("messages").
		Set("read_at", at).
		Where(squirrel.Eq{"id": id.String()}).
		Where(squirrel.Eq{"recipient_id": recipientID}).
		Where(squirrel.Eq{"read_at": nil}).
		Suffix("RETURNING " + strings.Join(messageColumns, ", "))
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var (
		m  domain.Message
		id string
	)
	if err := row.Scan(&id, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt, &m.ReadAt); err != nil {
		return domain.Message{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("invalid message id %q: %w", id, err)
	}
	m.ID = parsed
	m.CreatedAt = m.CreatedAt.UTC()
	if m.ReadAt != nil {
		readAt := m.ReadAt.UTC()
		m.ReadAt = &readAt
	}
	return m, nil
}
