// Package storage persists built atlases in memory or in Redis.
package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/eugenenazirov/atlas-packer/internal/atlas"
)

const defaultMaxAtlases = 100

var (
	// ErrNotFound indicates no atlas exists for the requested ID.
	ErrNotFound = errors.New("atlas not found")
	// ErrCapacityExceeded indicates the store already holds its maximum number of atlases.
	ErrCapacityExceeded = errors.New("atlas storage is full")
	// ErrInvalidAtlas indicates the atlas cannot be stored.
	ErrInvalidAtlas = errors.New("atlas must have an id")
)

// Storage keeps built atlases so clients can fetch their manifests later.
type Storage interface {
	Save(ctx context.Context, a atlas.Atlas) error
	Get(ctx context.Context, id string) (atlas.Atlas, error)
	List(ctx context.Context) ([]atlas.Atlas, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStorage keeps atlases in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu         sync.RWMutex
	atlases    map[string]atlas.Atlas
	maxAtlases int
}

// NewMemoryStorage creates an empty store holding at most maxAtlases entries.
// Values <= 0 select the default capacity.
func NewMemoryStorage(maxAtlases int) *MemoryStorage {
	if maxAtlases <= 0 {
		maxAtlases = defaultMaxAtlases
	}
	return &MemoryStorage{
		atlases:    make(map[string]atlas.Atlas),
		maxAtlases: maxAtlases,
	}
}

// Save stores a copy of a, replacing any atlas with the same ID.
func (s *MemoryStorage) Save(_ context.Context, a atlas.Atlas) error {
	if a.ID == "" {
		return ErrInvalidAtlas
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.atlases[a.ID]; !exists && len(s.atlases) >= s.maxAtlases {
		return fmt.Errorf("%w: limit is %d", ErrCapacityExceeded, s.maxAtlases)
	}
	s.atlases[a.ID] = a.Clone()
	return nil
}

// Get returns a copy of the atlas stored under id.
func (s *MemoryStorage) Get(_ context.Context, id string) (atlas.Atlas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.atlases[id]
	if !ok {
		return atlas.Atlas{}, ErrNotFound
	}
	return a.Clone(), nil
}

// List returns copies of all atlases, oldest first.
func (s *MemoryStorage) List(_ context.Context) ([]atlas.Atlas, error) {
	s.mu.RLock()
	out := make([]atlas.Atlas, 0, len(s.atlases))
	for _, a := range s.atlases {
		out = append(out, a.Clone())
	}
	s.mu.RUnlock()

	sortAtlases(out)
	return out, nil
}

// Delete removes the atlas stored under id.
func (s *MemoryStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.atlases[id]; !ok {
		return ErrNotFound
	}
	delete(s.atlases, id)
	return nil
}

func sortAtlases(list []atlas.Atlas) {
	slices.SortFunc(list, func(a, b atlas.Atlas) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
}
