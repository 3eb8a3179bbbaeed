package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aetherhq/aether/internal/store"
	"github.com/aetherhq/aether/internal/testutil"
)

func newTestRepo(t *testing.T) (*Repository, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	r := NewRepository(context.Background(), s, testutil.DiscardLogger())
	return r, s
}

func TestNewRepositoryAutoCreatesChat(t *testing.T) {
	r, _ := newTestRepo(t)

	if r.ActiveChatID() == "" {
		t.Fatal("expected an active chat after initialization")
	}

	active, err := r.ActiveChat()
	if err != nil {
		t.Fatalf("ActiveChat() error: %v", err)
	}
	if active.Title != DefaultTitle {
		t.Errorf("auto-created chat title = %q, want %q", active.Title, DefaultTitle)
	}
	if len(active.Messages) != 0 {
		t.Errorf("auto-created chat has %d messages, want 0", len(active.Messages))
	}
}

func TestNewRepositoryCorruptStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	if err := s.Set(ctx, StoreKey, "{not json"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	r := NewRepository(ctx, s, testutil.DiscardLogger())

	// Corrupt state is discarded, not fatal; a fresh chat appears.
	if r.ActiveChatID() == "" {
		t.Error("expected active chat after corrupt load")
	}
	if got := len(r.Chats()); got != 1 {
		t.Errorf("len(Chats()) = %d, want 1", got)
	}
}

func TestRepositoryPersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	first := NewRepository(ctx, s, testutil.DiscardLogger())

	chatID := first.ActiveChatID()
	if _, err := first.AddMessage(ctx, chatID, Message{Sender: SenderUser, Text: "hello there"}); err != nil {
		t.Fatalf("AddMessage() error: %v", err)
	}

	second := NewRepository(ctx, s, testutil.DiscardLogger())

	if second.ActiveChatID() != chatID {
		t.Errorf("reloaded active = %q, want %q", second.ActiveChatID(), chatID)
	}
	active, err := second.ActiveChat()
	if err != nil {
		t.Fatalf("ActiveChat() error: %v", err)
	}
	if len(active.Messages) != 1 || active.Messages[0].Text != "hello there" {
		t.Errorf("reloaded messages = %+v, want the original user message", active.Messages)
	}
	// Timestamps must survive the JSON round trip as real time values.
	if active.Messages[0].Timestamp.IsZero() {
		t.Error("reloaded message timestamp is zero")
	}
}

func TestCreateNewChatBecomesActive(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	firstID := r.ActiveChatID()
	newID := r.CreateNewChat(ctx)

	if newID == firstID {
		t.Fatal("CreateNewChat() returned the existing chat id")
	}
	if r.ActiveChatID() != newID {
		t.Errorf("active = %q, want newly created %q", r.ActiveChatID(), newID)
	}
	// Newest chat is listed first.
	if chats := r.Chats(); chats[0].ID != newID {
		t.Errorf("Chats()[0].ID = %q, want %q", chats[0].ID, newID)
	}
}

func TestSetActiveChatIDIsUnvalidated(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	// Pointer updates are pure: callers own validity.
	r.SetActiveChatID(ctx, "no-such-chat")
	if r.ActiveChatID() != "no-such-chat" {
		t.Errorf("ActiveChatID() = %q, want no-such-chat", r.ActiveChatID())
	}

	if _, err := r.ActiveChat(); !errors.Is(err, ErrNoActiveChat) {
		t.Errorf("ActiveChat() error = %v, want ErrNoActiveChat", err)
	}
}

func TestDeleteChat(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		r, _ := newTestRepo(t)
		if err := r.DeleteChat(context.Background(), "missing"); !errors.Is(err, ErrChatNotFound) {
			t.Errorf("DeleteChat() error = %v, want ErrChatNotFound", err)
		}
	})

	t.Run("active chat reassigns to most recent survivor", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()

		older := r.ActiveChatID()
		newer := r.CreateNewChat(ctx)
		// Bump the older chat so it is the most recently updated.
		if _, err := r.AddMessage(ctx, older, Message{Sender: SenderUser, Text: "bump"}); err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}
		r.SetActiveChatID(ctx, newer)

		if err := r.DeleteChat(ctx, newer); err != nil {
			t.Fatalf("DeleteChat() error: %v", err)
		}
		if r.ActiveChatID() != older {
			t.Errorf("active = %q, want most recent survivor %q", r.ActiveChatID(), older)
		}
	})

	t.Run("deleting the last chat auto-creates", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()

		only := r.ActiveChatID()
		if err := r.DeleteChat(ctx, only); err != nil {
			t.Fatalf("DeleteChat() error: %v", err)
		}

		if r.ActiveChatID() == "" || r.ActiveChatID() == only {
			t.Errorf("active = %q, want a fresh chat id", r.ActiveChatID())
		}
		if got := len(r.Chats()); got != 1 {
			t.Errorf("len(Chats()) = %d, want 1", got)
		}
	})

	t.Run("deleting inactive chat keeps pointer", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()

		first := r.ActiveChatID()
		second := r.CreateNewChat(ctx)

		if err := r.DeleteChat(ctx, first); err != nil {
			t.Fatalf("DeleteChat() error: %v", err)
		}
		if r.ActiveChatID() != second {
			t.Errorf("active = %q, want untouched %q", r.ActiveChatID(), second)
		}
	})
}

func TestAutoTitle(t *testing.T) {
	t.Run("first user text renames once", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()
		chatID := r.ActiveChatID()

		if _, err := r.AddMessage(ctx, chatID, Message{Sender: SenderUser, Text: "what is the weather like"}); err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}
		c, err := r.Chat(chatID)
		if err != nil {
			t.Fatalf("Chat() error: %v", err)
		}
		if c.Title != "what is the weather like" {
			t.Errorf("title = %q, want the first user message", c.Title)
		}

		// Later user messages never retitle.
		if _, err := r.AddMessage(ctx, chatID, Message{Sender: SenderUser, Text: "second message"}); err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}
		c, _ = r.Chat(chatID)
		if c.Title != "what is the weather like" {
			t.Errorf("title changed on second message: %q", c.Title)
		}
	})

	t.Run("long text truncates with ellipsis", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()
		chatID := r.ActiveChatID()

		long := strings.Repeat("a", 60)
		if _, err := r.AddMessage(ctx, chatID, Message{Sender: SenderUser, Text: long}); err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}

		c, _ := r.Chat(chatID)
		want := strings.Repeat("a", 30) + "..."
		if c.Title != want {
			t.Errorf("title = %q, want %q", c.Title, want)
		}
		if len([]rune(c.Title)) > 33 {
			t.Errorf("title length %d exceeds 33 runes", len([]rune(c.Title)))
		}
	})

	t.Run("assistant message does not rename", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()
		chatID := r.ActiveChatID()

		if _, err := r.AddMessage(ctx, chatID, Message{Sender: SenderAI, Text: "greetings"}); err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}
		c, _ := r.Chat(chatID)
		if c.Title != DefaultTitle {
			t.Errorf("title = %q, want %q", c.Title, DefaultTitle)
		}
	})

	t.Run("manually titled chat is never renamed", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()
		chatID := r.ActiveChatID()

		if err := r.UpdateChatTitle(ctx, chatID, "my project"); err != nil {
			t.Fatalf("UpdateChatTitle() error: %v", err)
		}
		if _, err := r.AddMessage(ctx, chatID, Message{Sender: SenderUser, Text: "hello"}); err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}
		c, _ := r.Chat(chatID)
		if c.Title != "my project" {
			t.Errorf("title = %q, want my project", c.Title)
		}
	})
}

func TestAddMessageAssignsIdentityAndBumps(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	chatID := r.ActiveChatID()

	before, _ := r.Chat(chatID)

	id, err := r.AddMessage(ctx, chatID, Message{
		ID:        "caller-supplied",        // must be ignored
		Timestamp: time.Unix(0, 0),          // must be ignored
		Sender:    SenderUser,
		Text:      "hi",
	})
	if err != nil {
		t.Fatalf("AddMessage() error: %v", err)
	}
	if id == "caller-supplied" {
		t.Error("AddMessage() kept the caller-supplied id")
	}

	msg, err := r.Message(chatID, id)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}
	if msg.Timestamp.Equal(time.Unix(0, 0)) {
		t.Error("AddMessage() kept the caller-supplied timestamp")
	}

	after, _ := r.Chat(chatID)
	if !after.LastUpdatedAt.After(before.LastUpdatedAt) && !after.LastUpdatedAt.Equal(before.LastUpdatedAt) {
		t.Error("LastUpdatedAt went backwards")
	}
}

func TestAddMessageUnknownChat(t *testing.T) {
	r, _ := newTestRepo(t)

	_, err := r.AddMessage(context.Background(), "missing", Message{Sender: SenderUser, Text: "x"})
	if !errors.Is(err, ErrChatNotFound) {
		t.Errorf("AddMessage() error = %v, want ErrChatNotFound", err)
	}
}

func TestUpdateMessage(t *testing.T) {
	t.Run("merges only specified fields", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()
		chatID := r.ActiveChatID()

		id, err := r.AddMessage(ctx, chatID, Message{Sender: SenderAI, IsLoading: true})
		if err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}
		original, _ := r.Message(chatID, id)

		err = r.UpdateMessage(ctx, chatID, id, MessageUpdate{
			Text:      Ptr("final answer"),
			IsLoading: Ptr(false),
		})
		if err != nil {
			t.Fatalf("UpdateMessage() error: %v", err)
		}

		updated, _ := r.Message(chatID, id)
		if updated.Text != "final answer" || updated.IsLoading {
			t.Errorf("updated = %+v, want finalized text", updated)
		}
		// Identity fields never change.
		if updated.ID != original.ID || updated.Sender != original.Sender || !updated.Timestamp.Equal(original.Timestamp) {
			t.Errorf("identity fields changed: %+v vs %+v", updated, original)
		}
		if updated.AnalyzedInfo != nil || updated.File != nil {
			t.Errorf("unspecified fields were touched: %+v", updated)
		}
	})

	t.Run("unknown message id is a no-op", func(t *testing.T) {
		r, _ := newTestRepo(t)
		ctx := context.Background()
		chatID := r.ActiveChatID()

		if err := r.UpdateMessage(ctx, chatID, "missing", MessageUpdate{Text: Ptr("x")}); err != nil {
			t.Errorf("UpdateMessage() on unknown message = %v, want nil", err)
		}
	})

	t.Run("unknown chat id errors", func(t *testing.T) {
		r, _ := newTestRepo(t)
		err := r.UpdateMessage(context.Background(), "missing", "m", MessageUpdate{})
		if !errors.Is(err, ErrChatNotFound) {
			t.Errorf("UpdateMessage() error = %v, want ErrChatNotFound", err)
		}
	})
}

func TestChatsReturnsCopies(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	chatID := r.ActiveChatID()

	if _, err := r.AddMessage(ctx, chatID, Message{Sender: SenderUser, Text: "original"}); err != nil {
		t.Fatalf("AddMessage() error: %v", err)
	}

	view, _ := r.ActiveChat()
	view.Messages[0].Text = "mutated by caller"
	view.Title = "mutated title"

	fresh, _ := r.ActiveChat()
	if fresh.Messages[0].Text != "original" {
		t.Error("caller mutation leaked into repository state")
	}
}

func TestPersistenceFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	r := NewRepository(ctx, failingStore{}, testutil.DiscardLogger())

	// Every mutation still succeeds in memory.
	chatID := r.CreateNewChat(ctx)
	id, err := r.AddMessage(ctx, chatID, Message{Sender: SenderUser, Text: "kept in memory"})
	if err != nil {
		t.Fatalf("AddMessage() error: %v", err)
	}
	msg, err := r.Message(chatID, id)
	if err != nil || msg.Text != "kept in memory" {
		t.Errorf("Message() = %+v, %v; want in-memory state intact", msg, err)
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("store unavailable")
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("store unavailable")
}
