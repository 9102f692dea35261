//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_user_directory.go -package=mocks
package directory

import (
	"context"
	"encoding/json"

	apperrors "agrilink/errors"

	"github.com/dgraph-io/badger/v4"
)

// Profile is the display identity of a platform participant, as supplied by
// the platform user service. The messaging core never stores credentials;
// it only needs existence, name, avatar and role.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"profileImage"`
	Role   string `json:"role"`
}

type IUserDirectory interface {
	Resolve(ctx context.Context, id string) (Profile, error)
	Upsert(ctx context.Context, profile Profile) error
}

// Store is a Badger-backed projection of the platform user service.
// The upstream service pushes profile updates through the sync endpoint;
// lookups here never leave the process.
type Store struct {
	db *badger.DB
}

func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

func (s *Store) Resolve(_ context.Context, id string) (Profile, error) {
	var profile Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err == badger.ErrKeyNotFound {
			return apperrors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &profile)
		})
	})
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (s *Store) Upsert(_ context.Context, profile Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(profile.ID), data)
	})
}
