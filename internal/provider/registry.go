package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"lyricgen/internal/models"
	"lyricgen/internal/store"
)

const (
	defaultModelIDField   = "id"
	defaultModelNameField = "name"
)

// Registry is the ordered, unique-by-name list of configured providers.
// User-added providers are written through to the key-value store on every
// mutation; built-in defaults never are. Each write re-reads the stored list
// inside the store's atomic update and merges into it, so providers saved by
// another process sharing the store are kept.
type Registry struct {
	mu         sync.Mutex
	providers  []models.Provider
	kv         store.KV
	logger     *slog.Logger
	persistErr error
}

// NewRegistry seeds a registry with the built-in providers.
func NewRegistry(defaults []models.Provider, kv store.KV, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		providers: make([]models.Provider, 0, len(defaults)),
		kv:        kv,
		logger:    logger,
	}
	for _, p := range defaults {
		prepared, err := Prepare(p)
		if err != nil {
			return nil, fmt.Errorf("default provider %q: %w", p.Name, err)
		}
		if r.indexLocked(prepared.Name) >= 0 {
			return nil, fmt.Errorf("default provider %q: %w", p.Name, ErrDuplicateProviderName)
		}
		prepared.Default = true
		r.providers = append(r.providers, prepared)
	}
	return r, nil
}

// Load restores user-added providers from the store. Entries whose names
// collide with a default are skipped.
func (r *Registry) Load(ctx context.Context) error {
	if r.kv == nil {
		return nil
	}
	raw, ok, err := r.kv.Get(ctx, store.KeyProviders)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}

	var saved []models.Provider
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return fmt.Errorf("decode saved providers: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.mergeLocked(saved)
	r.logger.Debug("loaded saved providers", "count", len(saved))
	return nil
}

// Add appends p, failing with ErrDuplicateProviderName if the name is taken
// here or in the store.
func (r *Registry) Add(ctx context.Context, p models.Provider) (models.Provider, error) {
	prepared, err := Prepare(p)
	if err != nil {
		return models.Provider{}, err
	}
	prepared.Default = false

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(prepared.Name) >= 0 {
		return models.Provider{}, fmt.Errorf("%w: %s", ErrDuplicateProviderName, prepared.Name)
	}

	saved, err := r.updateLocked(ctx, func(saved []models.Provider) ([]models.Provider, error) {
		for _, s := range saved {
			if s.Name == prepared.Name {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateProviderName, prepared.Name)
			}
		}
		return append(saved, prepared), nil
	})
	switch {
	case errors.Is(err, ErrDuplicateProviderName):
		return models.Provider{}, err
	case err != nil:
		r.providers = append(r.providers, prepared)
	default:
		r.mergeLocked(saved)
	}

	r.logger.Info("provider added", "provider", prepared.Name, "kind", prepared.Kind)
	return prepared.Clone(), nil
}

// Remove deletes the named provider and returns the resulting list. Unknown
// names leave the registry unchanged. Removing a default lasts until restart.
func (r *Registry) Remove(ctx context.Context, name string) []models.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(name)
	if idx >= 0 && r.providers[idx].Default {
		r.providers = append(r.providers[:idx:idx], r.providers[idx+1:]...)
		r.logger.Info("default provider removed for this session", "provider", name)
		return r.snapshotLocked()
	}

	found := idx >= 0
	saved, err := r.updateLocked(ctx, func(saved []models.Provider) ([]models.Provider, error) {
		kept := make([]models.Provider, 0, len(saved))
		for _, s := range saved {
			if s.Name == name {
				found = true
				continue
			}
			kept = append(kept, s)
		}
		return kept, nil
	})
	if err != nil {
		if idx >= 0 {
			r.providers = append(r.providers[:idx:idx], r.providers[idx+1:]...)
		}
	} else {
		r.mergeLocked(saved)
	}

	if found {
		r.logger.Info("provider removed", "provider", name)
	}
	return r.snapshotLocked()
}

// List returns the providers in insertion order.
func (r *Registry) List() []models.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (models.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(name)
	if idx < 0 {
		return models.Provider{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return r.providers[idx].Clone(), nil
}

// PersistErr reports why the most recent mutation could not be written to
// the store, or nil when it was. The in-memory change is kept either way.
func (r *Registry) PersistErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistErr
}

func (r *Registry) indexLocked(name string) int {
	for i, p := range r.providers {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (r *Registry) snapshotLocked() []models.Provider {
	out := make([]models.Provider, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.Clone()
	}
	return out
}

func (r *Registry) customLocked() []models.Provider {
	custom := make([]models.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if !p.Default {
			custom = append(custom, p)
		}
	}
	return custom
}

// updateLocked applies mutate to the stored user providers atomically. An
// unreadable stored value is replaced by the in-memory user providers.
// Errors other than those returned by mutate are logged and recorded for
// PersistErr.
func (r *Registry) updateLocked(ctx context.Context, mutate func([]models.Provider) ([]models.Provider, error)) ([]models.Provider, error) {
	if r.kv == nil {
		next, err := mutate(r.customLocked())
		if err == nil {
			r.persistErr = nil
		}
		return next, err
	}

	var next []models.Provider
	var mutateErr error
	err := r.kv.Update(ctx, store.KeyProviders, func(current string, ok bool) (string, error) {
		base := r.customLocked()
		if ok && strings.TrimSpace(current) != "" {
			var saved []models.Provider
			if err := json.Unmarshal([]byte(current), &saved); err != nil {
				r.logger.Warn("replacing unreadable saved providers", "error", err)
			} else {
				base = saved
			}
		}
		next, mutateErr = mutate(base)
		if mutateErr != nil {
			return "", mutateErr
		}
		data, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("encode providers: %w", err)
		}
		return string(data), nil
	})
	if mutateErr != nil {
		return nil, mutateErr
	}
	if err != nil {
		r.persistErr = err
		r.logger.Error("persist providers", "error", err)
		return nil, err
	}
	r.persistErr = nil
	return next, nil
}

// mergeLocked replaces the user providers with saved, keeping the defaults
// still registered. Invalid entries and names taken by a default are skipped.
func (r *Registry) mergeLocked(saved []models.Provider) {
	merged := make([]models.Provider, 0, len(r.providers)+len(saved))
	for _, p := range r.providers {
		if p.Default {
			merged = append(merged, p)
		}
	}

	for _, p := range saved {
		prepared, err := Prepare(p)
		if err != nil {
			r.logger.Warn("skipping invalid saved provider", "provider", p.Name, "error", err)
			continue
		}
		prepared.Default = false
		dup := false
		for _, m := range merged {
			if m.Name == prepared.Name {
				dup = true
				break
			}
		}
		if dup {
			r.logger.Warn("skipping saved provider with duplicate name", "provider", prepared.Name)
			continue
		}
		merged = append(merged, prepared)
	}
	r.providers = merged
}

// Prepare fills defaults on p and validates it.
func Prepare(p models.Provider) (models.Provider, error) {
	p = p.Clone()
	p.Name = strings.TrimSpace(p.Name)
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	p.ChatEndpoint = strings.TrimSpace(p.ChatEndpoint)
	p.ModelsEndpoint = strings.TrimSpace(p.ModelsEndpoint)

	if p.Name == "" {
		return models.Provider{}, fmt.Errorf("%w: provider name must not be empty", ErrBadRequest)
	}
	if p.Kind == "" {
		p.Kind = models.KindOpenAI
	}
	if !p.Kind.Valid() {
		return models.Provider{}, fmt.Errorf("%w: provider %s: unsupported kind %q", ErrBadRequest, p.Name, p.Kind)
	}

	if p.ChatEndpoint == "" && p.BaseURL != "" {
		switch p.Kind {
		case models.KindAnthropic:
			p.ChatEndpoint = p.BaseURL + "/messages"
		default:
			p.ChatEndpoint = p.BaseURL + "/chat/completions"
		}
	}
	if p.ChatEndpoint == "" {
		return models.Provider{}, fmt.Errorf("%w: provider %s: chat endpoint must be provided", ErrBadRequest, p.Name)
	}
	if err := validateURL(p.ChatEndpoint); err != nil {
		return models.Provider{}, fmt.Errorf("%w: provider %s: chat endpoint: %v", ErrBadRequest, p.Name, err)
	}

	if p.ModelsEndpoint == "" {
		if base, ok := strings.CutSuffix(p.ChatEndpoint, "/chat/completions"); ok {
			p.ModelsEndpoint = base + "/models"
		}
	}
	if p.ModelsEndpoint != "" {
		if err := validateURL(p.ModelsEndpoint); err != nil {
			return models.Provider{}, fmt.Errorf("%w: provider %s: models endpoint: %v", ErrBadRequest, p.Name, err)
		}
	}

	if p.ModelIDField == "" {
		p.ModelIDField = defaultModelIDField
	}
	if p.ModelNameField == "" {
		p.ModelNameField = defaultModelNameField
	}
	if p.APIKeyRef == "" {
		p.APIKeyRef = DefaultKeyRef(p.Name)
	}
	for header := range p.Headers {
		if !isHeaderToken(header) {
			return models.Provider{}, fmt.Errorf("%w: provider %s: header %q is not a valid HTTP header name", ErrBadRequest, p.Name, header)
		}
	}
	for i, m := range p.FallbackModels {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return models.Provider{}, fmt.Errorf("%w: provider %s: fallback model %d has no id", ErrBadRequest, p.Name, i+1)
		}
		if strings.TrimSpace(m.Name) == "" {
			m.Name = m.ID
		}
		m.ProviderName = p.Name
		m.Fallback = false
		p.FallbackModels[i] = m
	}
	if p.ID == "" {
		p.ID = strings.ToLower(strings.Join(strings.Fields(p.Name), "_")) + "_" + uuid.NewString()[:8]
	}
	return p, nil
}

// DefaultKeyRef derives the credential reference for a provider name,
// e.g. "My Provider" -> "MY_PROVIDER_API_KEY".
func DefaultKeyRef(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), "_")) + "_API_KEY"
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("host must not be empty")
	}
	return nil
}

// isHeaderToken reports whether header is an RFC 7230 token.
func isHeaderToken(header string) bool {
	if header == "" {
		return false
	}
	for i := 0; i < len(header); i++ {
		c := header[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}
