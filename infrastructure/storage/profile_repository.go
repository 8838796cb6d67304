package storage

import (
	"context"
	"estate-chat/domain"

	"github.com/Masterminds/squirrel"
)

type ProfileRepository struct {
	db Querier
}

func NewProfileRepository(db Querier) ProfileRepository {
	return ProfileRepository{db: db}
}

func (r ProfileRepository) GetProfiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := profilesQuery(ids).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.AvatarURL); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r ProfileRepository) UpsertProfile(ctx context.Context, profile domain.Profile) error {
	sql, args, err := upsertProfileQuery(profile).ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func profilesQuery(ids []string) squirrel.SelectBuilder {
	return psql.Select("id", "name", "avatar_url").From("profiles").
		Where(squirrel.Eq{"id": ids})
}

func upsertProfileQuery(p domain.Profile) squirrel.InsertBuilder {
	return psql.Insert("profiles").
		Columns("id", "name", "avatar_url").
		Values(p.ID, p.Name, p.AvatarURL).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url")
}
