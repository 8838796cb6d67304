//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=../mocks/mock_profile_repository.go -package=mocks
package repositories

import (
	"context"
	"estate-chat/domain"

	"github.com/dgraph-io/badger/v4"
)

type IProfileRepository interface {
	// GetProfiles returns the profiles found among ids, unknown ids are skipped.
	GetProfiles(ctx context.Context, ids []string) ([]domain.Profile, error)
	UpsertProfile(ctx context.Context, profile domain.Profile) error
}

type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) ProfileRepository {
	return ProfileRepository{db: db}
}

func profileKey(id string) []byte {
	return []byte("profile:" + id)
}

func (r ProfileRepository) GetProfiles(_ context.Context, ids []string) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := r.db.View(func(txn *badger.Txn) error {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			item, err := txn.Get(profileKey(id))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				p, err := decodeProfile(val)
				if err != nil {
					return err
				}
				profiles = append(profiles, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return profiles, err
}

func (r ProfileRepository) UpsertProfile(_ context.Context, profile domain.Profile) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(profile.ID), encodeProfile(profile))
	})
}
