// Package layouts persists per-template layout configurations.
//
// Layouts are stored as raw JSON rather than a decoded struct so that a row
// written by an older or buggy client still reaches the generator, which
// treats a malformed layout as recoverable and falls back to defaults.
package layouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/certforge/internal/core"
)

// ErrNotFound is returned when no layout is stored for a key.
var ErrNotFound = errors.New("layout not found")

// ErrInvalidKey is returned for template keys outside [A-Za-z0-9._-]{1,128}.
var ErrInvalidKey = errors.New("invalid template key")

var (
	_ Store             = (*MemoryStore)(nil)
	_ Store             = (*PostgresStore)(nil)
	_ core.LayoutSource = (Store)(nil)
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Entry is one stored layout.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	Key       string          `json:"template_key"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Layout decodes the stored configuration.
func (e *Entry) Layout() (*core.StoredLayout, error) {
	return core.DecodeLayout(e.Config)
}

// Store is a layout repository. Implementations also satisfy
// core.LayoutSource.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, key string, layout core.StoredLayout) (*Entry, error)
	Delete(ctx context.Context, key string) error
	Layout(ctx context.Context, key string) ([]byte, error)
}

// NormalizeKey trims key and checks it against the allowed character set.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key, nil
}

// encodeLayout validates layout and returns its canonical JSON. Invalid
// layouts are rejected on write even though reads tolerate them.
func encodeLayout(layout core.StoredLayout) ([]byte, error) {
	if _, err := core.ResolveLayout(&layout); err != nil {
		return nil, err
	}
	data, err := json.Marshal(layout)
	if err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}
	return data, nil
}

// rawLayout adapts Get to core.LayoutSource semantics: missing is (nil, nil).
func rawLayout(ctx context.Context, s Store, key string) ([]byte, error) {
	e, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e.Config, nil
}
