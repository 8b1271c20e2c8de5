package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lyricgen/internal/models"
	"lyricgen/internal/store"
)

// DefaultFolder holds drafts saved without a folder.
const DefaultFolder = "General"

// ErrEmptyDraft indicates a draft with no content.
var ErrEmptyDraft = errors.New("draft content must not be empty")

// Input is the user-supplied part of a new draft.
type Input struct {
	Title   string
	Content string
	Folder  string
}

// Library is the ordered collection of saved drafts. Every mutation rewrites
// the whole list inside the store's atomic update, starting from the stored
// list so drafts saved by another process are kept.
type Library struct {
	mu         sync.Mutex
	drafts     []models.Draft
	kv         store.KV
	logger     *slog.Logger
	now        func() time.Time
	persistErr error
}

// Open loads the saved drafts from kv.
func Open(ctx context.Context, kv store.KV, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Library{kv: kv, logger: logger, now: time.Now}

	raw, ok, err := kv.Get(ctx, store.KeyDrafts)
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	if ok && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &l.drafts); err != nil {
			return nil, fmt.Errorf("decode drafts: %w", err)
		}
	}
	return l, nil
}

// List returns the drafts in the order they were saved.
func (l *Library) List() []models.Draft {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Add saves a new draft, filling in the default title and folder.
func (l *Library) Add(ctx context.Context, in Input) (models.Draft, error) {
	if strings.TrimSpace(in.Content) == "" {
		return models.Draft{}, ErrEmptyDraft
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	d := models.Draft{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Folder:    strings.TrimSpace(in.Folder),
		CreatedAt: l.now().UTC(),
	}
	if d.Folder == "" {
		d.Folder = DefaultFolder
	}

	title := d.Title
	l.updateLocked(ctx, func(list []models.Draft) []models.Draft {
		d.Title = title
		if d.Title == "" {
			d.Title = fmt.Sprintf("Draft %d", len(list)+1)
		}
		return append(list, d)
	})

	l.logger.Info("draft saved", "draft_id", d.ID, "folder", d.Folder, "chars", len(d.Content))
	return d, nil
}

// Remove deletes the draft with id and returns the resulting list. Unknown
// ids leave the library unchanged.
func (l *Library) Remove(ctx context.Context, id string) []models.Draft {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := false
	l.updateLocked(ctx, func(list []models.Draft) []models.Draft {
		kept := make([]models.Draft, 0, len(list))
		for _, d := range list {
			if d.ID == id {
				removed = true
				continue
			}
			kept = append(kept, d)
		}
		return kept
	})
	if removed {
		l.logger.Info("draft removed", "draft_id", id)
	}
	return l.snapshotLocked()
}

// Folders returns the distinct folder names, sorted.
func (l *Library) Folders() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{})
	folders := []string{}
	for _, d := range l.drafts {
		if _, ok := seen[d.Folder]; ok {
			continue
		}
		seen[d.Folder] = struct{}{}
		folders = append(folders, d.Folder)
	}
	sort.Strings(folders)
	return folders
}

// PersistErr reports why the most recent mutation could not be written to
// the store, or nil when it was.
func (l *Library) PersistErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistErr
}

func (l *Library) snapshotLocked() []models.Draft {
	out := make([]models.Draft, len(l.drafts))
	copy(out, l.drafts)
	return out
}

// updateLocked applies mutate to the stored list and adopts the result. When
// the store fails, mutate is applied to the in-memory list instead and the
// failure is logged.
func (l *Library) updateLocked(ctx context.Context, mutate func([]models.Draft) []models.Draft) {
	var next []models.Draft
	err := l.kv.Update(ctx, store.KeyDrafts, func(current string, ok bool) (string, error) {
		base := l.snapshotLocked()
		if ok && strings.TrimSpace(current) != "" {
			var saved []models.Draft
			if err := json.Unmarshal([]byte(current), &saved); err != nil {
				l.logger.Warn("replacing unreadable saved drafts", "error", err)
			} else {
				base = saved
			}
		}
		next = mutate(base)
		data, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("encode drafts: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		l.persistErr = err
		l.logger.Error("persist drafts", "error", err)
		l.drafts = mutate(l.snapshotLocked())
		return
	}
	l.persistErr = nil
	l.drafts = next
}
