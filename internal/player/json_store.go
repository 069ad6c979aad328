package player

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/storage/local"
)

const (
	collectionPlayers = "players"
	subdirCredits     = "credits"
)

// JSONStore keeps one JSON document per player, with XP credits stored as
// nested documents beside it
type JSONStore struct {
	store *local.Store
}

// NewJSONStore creates a new JSON player store
func NewJSONStore(basePath string) (*JSONStore, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, err
	}
	return &JSONStore{store: store}, nil
}

// NewJSONStoreFrom wraps an existing local store
func NewJSONStoreFrom(store *local.Store) *JSONStore {
	return &JSONStore{store: store}
}

// Local exposes the underlying document store
func (s *JSONStore) Local() *local.Store {
	return s.store
}

// Get loads a player record
func (s *JSONStore) Get(_ context.Context, id string) (*domain.PlayerRecord, error) {
	var rec domain.PlayerRecord
	if err := s.store.Load(collectionPlayers, id, &rec); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
		}
		return nil, err
	}
	rec.EnsureMaps()
	return &rec, nil
}

// Save writes the credits first and the record last, so a crash between the
// two leaves history that is at most ahead of the pools
func (s *JSONStore) Save(_ context.Context, rec *domain.PlayerRecord, credits []domain.XPCredit) error {
	for _, c := range credits {
		if err := s.store.SaveDir(collectionPlayers, rec.ID, subdirCredits, c.ID, c); err != nil {
			return fmt.Errorf("save credit: %w", err)
		}
	}
	return s.store.Save(collectionPlayers, rec.ID, rec)
}

// Delete removes a player and their history
func (s *JSONStore) Delete(_ context.Context, id string) error {
	if err := s.store.Delete(collectionPlayers, id); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
		}
		return err
	}
	return nil
}

// List returns all player ids
func (s *JSONStore) List(_ context.Context) ([]string, error) {
	return s.store.List(collectionPlayers)
}

// Credits returns up to limit credits, newest first
func (s *JSONStore) Credits(_ context.Context, id string, limit int) ([]domain.XPCredit, error) {
	names, err := s.store.ListDir(collectionPlayers, id, subdirCredits)
	if err != nil {
		return nil, err
	}

	credits := make([]domain.XPCredit, 0, len(names))
	for _, name := range names {
		var c domain.XPCredit
		if err := s.store.LoadDir(collectionPlayers, id, subdirCredits, name, &c); err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}

	sort.SliceStable(credits, func(i, j int) bool { return credits[i].CreatedAt.After(credits[j].CreatedAt) })
	if limit > 0 && len(credits) > limit {
		credits = credits[:limit]
	}
	return credits, nil
}
