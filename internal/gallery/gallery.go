// Package gallery owns the bounded history of generated images.
//
// The history is newest-first and capped; entries beyond the cap are
// evicted from the tail. Persistence mirrors the chat repository:
// every mutation re-serializes the collection to the session store
// best-effort, and store failures never surface to callers.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aetherhq/aether/internal/store"
)

// StoreKey is the session store key holding the serialized history.
const StoreKey = "aether-image-history"

// DefaultLimit caps the history when no explicit limit is configured.
const DefaultLimit = 50

// Entry is one generated image.
type Entry struct {
	ID            string    `json:"id"`
	Prompt        string    `json:"prompt"`
	ImageDataURI  string    `json:"imageDataUri"`
	RevisedPrompt string    `json:"revisedPrompt,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Repository owns the image history collection.
// It is safe for concurrent use by multiple goroutines.
type Repository struct {
	mu      sync.RWMutex
	store   store.Store
	logger  *slog.Logger
	limit   int
	entries []Entry // newest first
	now     func() time.Time
	newID   func() string
}

// NewRepository loads persisted history from the session store.
// A missing or corrupt document starts the history empty; limit <= 0
// falls back to DefaultLimit.
func NewRepository(ctx context.Context, s store.Store, limit int, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	r := &Repository{
		store:  s,
		logger: logger,
		limit:  limit,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}

	r.load(ctx)
	return r
}

func (r *Repository) load(ctx context.Context) {
	raw, err := r.store.Get(ctx, StoreKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("loading image history failed, starting empty", "error", err)
		}
		return
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.logger.Warn("stored image history is corrupt, starting empty", "error", err)
		return
	}

	// Stored history may predate a lowered limit.
	if len(entries) > r.limit {
		entries = entries[:r.limit]
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
}

// Add prepends an entry, assigning a fresh id and the current
// timestamp, and evicts the oldest entries beyond the cap.
// Returns the assigned id.
func (r *Repository) Add(ctx context.Context, entry Entry) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = r.newID()
	entry.Timestamp = r.now()

	r.entries = append([]Entry{entry}, r.entries...)
	if len(r.entries) > r.limit {
		r.entries = r.entries[:r.limit]
	}

	r.persistLocked(ctx)
	return entry.ID
}

// Clear empties the history.
func (r *Repository) Clear(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
	r.persistLocked(ctx)
}

// Entries returns a copy of the history, newest first.
func (r *Repository) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// persistLocked serializes the history to the session store.
// Failures are logged, never surfaced. Caller must hold r.mu.
func (r *Repository) persistLocked(ctx context.Context) {
	data, err := json.Marshal(r.entries)
	if err != nil {
		r.logger.Warn("serializing image history failed", "error", err)
		return
	}
	if err := r.store.Set(ctx, StoreKey, string(data)); err != nil {
		r.logger.Warn("persisting image history failed", "error", err)
	}
}
