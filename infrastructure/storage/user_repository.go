package storage

import (
	"context"
	"estate-chat/errors"
	"estate-chat/repositories"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	db Querier
}

func NewUserRepository(db Querier) repositories.IUserRepository {
	return UserRepository{db: db}
}

func (r UserRepository) CreateUser(ctx context.Context, email, hashedPassword string) (string, error) {
	id := uuid.New().String()
	sql, args, err := psql.Insert("users").
		Columns("id", "email", "password_hash", "roles", "created_at").
		Values(id, email, hashedPassword, []string{"user"}, time.Now().UTC()).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err = r.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return "", errors.ErrUserAlreadyExists
		}
		return "", err
	}
	return id, nil
}

func (r UserRepository) GetUserByEmail(ctx context.Context, email string) (repositories.User, error) {
	sql, args, err := psql.Select("id::text", "email", "password_hash", "roles", "created_at").
		From("users").Where(squirrel.Eq{"email": email}).ToSql()
	if err != nil {
		return repositories.User{}, err
	}
	var u repositories.User
	err = r.db.QueryRow(ctx, sql, args...).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return repositories.User{}, errors.ErrNotFound
	}
	return u, err
}
