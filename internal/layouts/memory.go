package layouts

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/certforge/internal/core"
)

// MemoryStore keeps layouts in process memory. It is used when no database
// is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, layout core.StoredLayout) (*Entry, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	data, err := encodeLayout(layout)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	e, ok := s.entries[key]
	if !ok {
		e = Entry{ID: uuid.New(), Key: key, CreatedAt: now}
	}
	e.Config = data
	e.UpdatedAt = now
	s.entries[key] = e
	return &e, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	key, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

// Layout implements core.LayoutSource.
func (s *MemoryStore) Layout(ctx context.Context, key string) ([]byte, error) {
	return rawLayout(ctx, s, key)
}

// PutRaw stores config verbatim, bypassing validation. It exists for
// seeding and for exercising the malformed-layout path.
func (s *MemoryStore) PutRaw(key string, config []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	s.entries[key] = Entry{ID: uuid.New(), Key: key, Config: config, CreatedAt: now, UpdatedAt: now}
}
