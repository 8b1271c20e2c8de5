package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lyricgen/internal/models"
	"lyricgen/internal/store"
)

// Store remembers the provider and model selected most recently.
type Store struct {
	kv store.KV
}

// New returns a session store backed by kv.
func New(kv store.KV) *Store {
	return &Store{kv: kv}
}

// Load returns the saved pair. ok is false when nothing has been saved.
func (s *Store) Load(ctx context.Context) (models.LastUsed, bool, error) {
	raw, ok, err := s.kv.Get(ctx, store.KeyLastUsed)
	if err != nil {
		return models.LastUsed{}, false, fmt.Errorf("load last used: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return models.LastUsed{}, false, nil
	}

	var last models.LastUsed
	if err := json.Unmarshal([]byte(raw), &last); err != nil {
		return models.LastUsed{}, false, fmt.Errorf("decode last used: %w", err)
	}
	if last.Provider == "" {
		return models.LastUsed{}, false, nil
	}
	return last, true, nil
}

// Save records last as the current selection.
func (s *Store) Save(ctx context.Context, last models.LastUsed) error {
	if strings.TrimSpace(last.Provider) == "" {
		return errors.New("last used provider must not be empty")
	}
	data, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("encode last used: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeyLastUsed, string(data)); err != nil {
		return fmt.Errorf("save last used: %w", err)
	}
	return nil
}
