package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aetherhq/aether/internal/store"
)

// StoreKey is the session store key holding the serialized chat
// collection and active-chat pointer.
const StoreKey = "aether-chats"

// persistedState is the JSON document written to the session store.
type persistedState struct {
	Chats        []*Chat `json:"chats"`
	ActiveChatID string  `json:"activeChatId,omitempty"`
}

// Repository owns the chat collection and the active-chat pointer.
//
// All mutation goes through repository operations; accessors return
// copies so callers can never alias internal state. Every mutating
// operation re-serializes the whole collection to the session store;
// store errors are logged and swallowed (in-memory state is
// authoritative for the session).
//
// Repository is safe for concurrent use by multiple goroutines.
type Repository struct {
	mu       sync.RWMutex
	store    store.Store
	logger   *slog.Logger
	chats    []*Chat // newest chat first
	activeID string  // "" means no active chat
	now      func() time.Time
	newID    func() string
}

// NewRepository loads persisted chats from the session store and
// returns a ready repository.
//
// A missing or corrupt stored document is never fatal: the repository
// logs the problem and starts with an empty collection. After loading,
// the most-recently-updated chat becomes active; if the collection is
// empty a fresh chat is auto-created so there is always an active chat.
func NewRepository(ctx context.Context, s store.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Repository{
		store:  s,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}

	r.load(ctx)

	r.mu.Lock()
	if r.activeID == "" {
		r.createNewChatLocked(ctx)
	}
	r.mu.Unlock()

	return r
}

// load reads the persisted document. Read or parse failures leave the
// repository empty.
func (r *Repository) load(ctx context.Context) {
	raw, err := r.store.Get(ctx, StoreKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("loading chats from store failed, starting empty", "error", err)
		}
		return
	}

	var state persistedState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		r.logger.Warn("stored chats are corrupt, starting empty", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.chats = state.Chats
	r.activeID = state.ActiveChatID

	// The stored pointer may reference a deleted chat; fall back to
	// the most-recently-updated chat.
	if r.findLocked(r.activeID) == nil {
		r.activeID = r.mostRecentLocked()
	}
}

// CreateNewChat inserts a fresh chat titled "New Chat", makes it
// active and returns its id.
func (r *Repository) CreateNewChat(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createNewChatLocked(ctx)
}

func (r *Repository) createNewChatLocked(ctx context.Context) string {
	now := r.now()
	c := &Chat{
		ID:            r.newID(),
		Title:         DefaultTitle,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Messages:      []Message{},
	}
	r.chats = append([]*Chat{c}, r.chats...)
	r.activeID = c.ID

	r.persistLocked(ctx)
	r.logger.Debug("created chat", "chat_id", c.ID)
	return c.ID
}

// SetActiveChatID updates the active-chat pointer. An empty id clears
// it. The id is not validated against the collection; callers are
// responsible for passing a real chat id.
func (r *Repository) SetActiveChatID(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activeID = id
	r.persistLocked(ctx)
}

// DeleteChat removes a chat. If it was active, the most-recently-
// updated survivor becomes active; if none survive, a fresh chat is
// auto-created. Returns ErrChatNotFound for an unknown id.
func (r *Repository) DeleteChat(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, c := range r.chats {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrChatNotFound
	}

	r.chats = append(r.chats[:idx], r.chats[idx+1:]...)

	if r.activeID == id {
		r.activeID = r.mostRecentLocked()
		if r.activeID == "" {
			r.createNewChatLocked(ctx)
			return nil // createNewChatLocked already persisted
		}
	}

	r.persistLocked(ctx)
	r.logger.Debug("deleted chat", "chat_id", id)
	return nil
}

// UpdateChatTitle sets the chat's title and bumps its last-updated
// timestamp.
func (r *Repository) UpdateChatTitle(ctx context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.findLocked(id)
	if c == nil {
		return ErrChatNotFound
	}

	c.Title = title
	c.LastUpdatedAt = r.now()
	r.persistLocked(ctx)
	return nil
}

// AddMessage appends a message to the chat, assigning a fresh id and
// the current timestamp (any values in msg.ID/msg.Timestamp are
// ignored). Returns the assigned message id.
//
// Adding the first user text message to a chat still titled "New Chat"
// renames the chat to a truncated prefix of that text. The rename
// happens exactly once: later user messages never retitle the chat.
func (r *Repository) AddMessage(ctx context.Context, chatID string, msg Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.findLocked(chatID)
	if c == nil {
		return "", ErrChatNotFound
	}

	now := r.now()
	msg.ID = r.newID()
	msg.Timestamp = now
	c.Messages = append(c.Messages, msg)
	c.LastUpdatedAt = now

	if c.Title == DefaultTitle && msg.Sender == SenderUser && msg.Text != "" {
		if countUserTextMessages(c.Messages) == 1 {
			c.Title = truncateTitle(msg.Text)
		}
	}

	r.persistLocked(ctx)
	return msg.ID, nil
}

// UpdateMessage merges non-nil update fields into the message in
// place and bumps the chat's last-updated timestamp. An unknown
// message id is a safe no-op; an unknown chat id returns
// ErrChatNotFound.
func (r *Repository) UpdateMessage(ctx context.Context, chatID, messageID string, update MessageUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.findLocked(chatID)
	if c == nil {
		return ErrChatNotFound
	}

	for i := range c.Messages {
		if c.Messages[i].ID != messageID {
			continue
		}

		m := &c.Messages[i]
		if update.Text != nil {
			m.Text = *update.Text
		}
		if update.File != nil {
			m.File = update.File
		}
		if update.IsLoading != nil {
			m.IsLoading = *update.IsLoading
		}
		if update.IsError != nil {
			m.IsError = *update.IsError
		}
		if update.AnalyzedInfo != nil {
			m.AnalyzedInfo = update.AnalyzedInfo
		}
		if update.Intent != nil {
			m.Intent = *update.Intent
		}
		if update.RequiresContext != nil {
			m.RequiresContext = *update.RequiresContext
		}
		if update.Feedback != nil {
			m.Feedback = *update.Feedback
		}
		if update.Correction != nil {
			m.Correction = *update.Correction
		}

		c.LastUpdatedAt = r.now()
		r.persistLocked(ctx)
		return nil
	}

	// Unknown message id: deliberately a no-op.
	return nil
}

// ActiveChatID returns the active-chat pointer, or "" if none.
func (r *Repository) ActiveChatID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// ActiveChat returns a copy of the active chat.
// Returns ErrNoActiveChat when the pointer is empty or stale.
func (r *Repository) ActiveChat() (Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := r.findLocked(r.activeID)
	if c == nil {
		return Chat{}, ErrNoActiveChat
	}
	return copyChat(c), nil
}

// Chat returns a copy of the chat with the given id.
func (r *Repository) Chat(id string) (Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := r.findLocked(id)
	if c == nil {
		return Chat{}, ErrChatNotFound
	}
	return copyChat(c), nil
}

// Chats returns copies of all chats, newest first.
func (r *Repository) Chats() []Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Chat, 0, len(r.chats))
	for _, c := range r.chats {
		out = append(out, copyChat(c))
	}
	return out
}

// Message returns a copy of one message.
func (r *Repository) Message(chatID, messageID string) (Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := r.findLocked(chatID)
	if c == nil {
		return Message{}, ErrChatNotFound
	}
	for _, m := range c.Messages {
		if m.ID == messageID {
			return m, nil
		}
	}
	return Message{}, fmt.Errorf("%w: message %s", ErrChatNotFound, messageID)
}

// findLocked returns the chat with the given id, or nil.
// Caller must hold r.mu.
func (r *Repository) findLocked(id string) *Chat {
	if id == "" {
		return nil
	}
	for _, c := range r.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// mostRecentLocked returns the id of the most-recently-updated chat,
// or "" when the collection is empty. Caller must hold r.mu.
func (r *Repository) mostRecentLocked() string {
	var best *Chat
	for _, c := range r.chats {
		if best == nil || c.LastUpdatedAt.After(best.LastUpdatedAt) {
			best = c
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// persistLocked serializes the full collection to the session store.
// Failures are logged, never surfaced: persistence is best-effort and
// last-write-wins. Caller must hold r.mu.
func (r *Repository) persistLocked(ctx context.Context) {
	state := persistedState{
		Chats:        r.chats,
		ActiveChatID: r.activeID,
	}

	data, err := json.Marshal(state)
	if err != nil {
		r.logger.Warn("serializing chats failed", "error", err)
		return
	}
	if err := r.store.Set(ctx, StoreKey, string(data)); err != nil {
		r.logger.Warn("persisting chats failed", "error", err)
	}
}

// copyChat deep-copies the message slice so callers cannot mutate
// repository state. Pointer fields (File, AnalyzedInfo) are treated
// as immutable and shared.
func copyChat(c *Chat) Chat {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// countUserTextMessages counts user messages carrying non-empty text.
func countUserTextMessages(messages []Message) int {
	n := 0
	for _, m := range messages {
		if m.Sender == SenderUser && m.Text != "" {
			n++
		}
	}
	return n
}

// truncateTitle shortens text to the auto-title prefix, appending an
// ellipsis when anything was cut.
func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxRunes {
		return text
	}
	return string(runes[:titleMaxRunes]) + "..."
}
