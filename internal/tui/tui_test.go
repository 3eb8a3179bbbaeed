package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/goleak"

	"github.com/aetherhq/aether/internal/assist"
	"github.com/aetherhq/aether/internal/chat"
	"github.com/aetherhq/aether/internal/gallery"
	"github.com/aetherhq/aether/internal/store"
	"github.com/aetherhq/aether/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestTUI builds a TUI over in-memory repositories and a stub
// backend. The returned cancel must run before goleak verification.
func newTestTUI(t *testing.T) *TUI {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := testutil.DiscardLogger()
	st := store.NewMemory()
	chats := chat.NewRepository(ctx, st, logger)
	images := gallery.NewRepository(ctx, st, 10, logger)

	handler, err := assist.NewHandler(assist.HandlerParams{
		Service: &assist.ServiceStub{},
		Chats:   chats,
		Gallery: images,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	tui, err := New(ctx, handler, chats, images, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if tui.ctxCancel != nil {
			tui.ctxCancel()
		}
	})
	return tui
}

func TestNewValidatesDependencies(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, nil, nil, nil, nil); err == nil {
		t.Error("New() with nil handler should fail")
	}
}

func TestInitReturnsCommand(t *testing.T) {
	tui := newTestTUI(t)
	if cmd := tui.Init(); cmd == nil {
		t.Error("Init should return a command (blink + spinner tick)")
	}
}

func TestHandleSlashCommands(t *testing.T) {
	t.Run("help shows command list", func(t *testing.T) {
		tui := newTestTUI(t)
		model, _ := tui.handleSlashCommand(cmdHelp)
		result := model.(*TUI)
		if !strings.Contains(result.systemNote, "/attach") {
			t.Error("/help should list the attach command")
		}
	})

	t.Run("exit returns quit command", func(t *testing.T) {
		for _, cmd := range []string{cmdExit, cmdQuit} {
			tui := newTestTUI(t)
			_, teaCmd := tui.handleSlashCommand(cmd)
			if teaCmd == nil {
				t.Errorf("%s should return quit command", cmd)
			}
		}
	})

	t.Run("unknown command sets error status", func(t *testing.T) {
		tui := newTestTUI(t)
		model, _ := tui.handleSlashCommand("/bogus")
		result := model.(*TUI)
		if !result.statusErr || !strings.Contains(result.status, "/bogus") {
			t.Errorf("status = %q (err=%v), want unknown command error", result.status, result.statusErr)
		}
	})

	t.Run("new creates a second chat", func(t *testing.T) {
		tui := newTestTUI(t)
		before := len(tui.chats.Chats())
		tui.handleSlashCommand(cmdNew)
		if got := len(tui.chats.Chats()); got != before+1 {
			t.Errorf("chats = %d, want %d", got, before+1)
		}
	})

	t.Run("switch activates listed chat", func(t *testing.T) {
		tui := newTestTUI(t)
		tui.chats.CreateNewChat(context.Background())
		chats := tui.chats.Chats()
		if len(chats) < 2 {
			t.Fatalf("need at least 2 chats, have %d", len(chats))
		}

		tui.handleSlashCommand(cmdSwitch + " 2")
		if got := tui.chats.ActiveChatID(); got != chats[1].ID {
			t.Errorf("active chat = %q, want %q", got, chats[1].ID)
		}
	})

	t.Run("switch rejects bad index", func(t *testing.T) {
		tui := newTestTUI(t)
		model, _ := tui.handleSlashCommand(cmdSwitch + " 99")
		result := model.(*TUI)
		if !result.statusErr {
			t.Error("out-of-range /switch should set error status")
		}
	})

	t.Run("rename updates the active chat title", func(t *testing.T) {
		tui := newTestTUI(t)
		tui.handleSlashCommand(cmdRename + " Trip planning")

		active, err := tui.chats.ActiveChat()
		if err != nil {
			t.Fatalf("ActiveChat() error = %v", err)
		}
		if active.Title != "Trip planning" {
			t.Errorf("title = %q, want %q", active.Title, "Trip planning")
		}
	})

	t.Run("delete removes the active chat", func(t *testing.T) {
		tui := newTestTUI(t)
		id := tui.chats.ActiveChatID()
		tui.handleSlashCommand(cmdDelete)
		for _, c := range tui.chats.Chats() {
			if c.ID == id {
				t.Error("deleted chat still listed")
			}
		}
	})

	t.Run("attach stages a file", func(t *testing.T) {
		tui := newTestTUI(t)
		path := filepath.Join(t.TempDir(), "notes.txt")
		if err := os.WriteFile(path, []byte("hello attachment"), 0o600); err != nil {
			t.Fatal(err)
		}

		tui.handleSlashCommand(cmdAttach + " " + path)
		if tui.staged == nil {
			t.Fatal("expected staged attachment")
		}
		if tui.staged.Name != "notes.txt" {
			t.Errorf("staged name = %q, want notes.txt", tui.staged.Name)
		}

		tui.handleSlashCommand(cmdDetach)
		if tui.staged != nil {
			t.Error("/detach should drop the staged file")
		}
	})

	t.Run("attach missing file fails", func(t *testing.T) {
		tui := newTestTUI(t)
		model, _ := tui.handleSlashCommand(cmdAttach + " /does/not/exist")
		result := model.(*TUI)
		if !result.statusErr {
			t.Error("missing file should set error status")
		}
		if result.staged != nil {
			t.Error("nothing should be staged on failure")
		}
	})

	t.Run("images lists gallery entries", func(t *testing.T) {
		tui := newTestTUI(t)
		tui.gallery.Add(context.Background(), gallery.Entry{
			Prompt:       "a red fox",
			ImageDataURI: "data:image/png;base64,AAAA",
			Timestamp:    time.Now(),
		})

		model, _ := tui.handleSlashCommand(cmdImages)
		result := model.(*TUI)
		if !strings.Contains(result.systemNote, "a red fox") {
			t.Errorf("note = %q, want gallery listing", result.systemNote)
		}

		tui.handleSlashCommand(cmdClearImages)
		if got := len(tui.gallery.Entries()); got != 0 {
			t.Errorf("entries after clear = %d, want 0", got)
		}
	})

	t.Run("feedback requires a direction", func(t *testing.T) {
		tui := newTestTUI(t)
		model, _ := tui.handleSlashCommand(cmdFeedback + " sideways")
		result := model.(*TUI)
		if !result.statusErr {
			t.Error("bad feedback direction should set error status")
		}
	})
}

func TestHistoryNavigation(t *testing.T) {
	tui := newTestTUI(t)
	tui.history = []string{"first", "second", "third"}
	tui.historyIdx = 3

	tests := []struct {
		delta    int
		expected string
	}{
		{-1, "third"},
		{-1, "second"},
		{-1, "first"},
		{-1, "first"}, // Stays at first
		{1, "second"},
		{1, "third"},
		{1, ""}, // Past end = empty
		{1, ""},
	}

	for i, tt := range tests {
		model, _ := tui.navigateHistory(tt.delta)
		tui = model.(*TUI)
		if tui.input.Value() != tt.expected {
			t.Errorf("step %d: got %q, want %q", i, tui.input.Value(), tt.expected)
		}
	}
}

func TestCtrlCClearsInput(t *testing.T) {
	tui := newTestTUI(t)
	tui.input.SetValue("some input")

	model, _ := tui.handleCtrlC()
	result := model.(*TUI)

	if result.input.Value() != "" {
		t.Error("first Ctrl+C should clear input")
	}
}

func TestDoubleCtrlCExits(t *testing.T) {
	tui := newTestTUI(t)
	tui.lastCtrlC = time.Now()

	_, cmd := tui.handleCtrlC()
	if cmd == nil {
		t.Error("double Ctrl+C should return quit command")
	}
}

func TestUpdateKeyPress(t *testing.T) {
	tui := newTestTUI(t)
	tui.input.SetValue("test")

	key := tea.Key{Code: 'c', Mod: tea.ModCtrl}
	model, _ := tui.Update(tea.KeyPressMsg(key))
	result := model.(*TUI)

	if result.input.Value() != "" {
		t.Error("Ctrl+C should clear input")
	}
}

func TestSubmitStartsTurn(t *testing.T) {
	tui := newTestTUI(t)
	tui.input.SetValue("hello there")

	model, cmd := tui.handleSubmit()
	result := model.(*TUI)

	if result.state != StateBusy {
		t.Errorf("state = %v, want StateBusy", result.state)
	}
	if cmd == nil {
		t.Fatal("submit should return a command")
	}
	if got := result.history[len(result.history)-1]; got != "hello there" {
		t.Errorf("history tail = %q, want submitted query", got)
	}
	if result.input.Value() != "" {
		t.Error("input should be cleared after submit")
	}
}

func TestTurnDoneRestoresInputState(t *testing.T) {
	tui := newTestTUI(t)
	tui.state = StateBusy

	model, _ := tui.Update(turnDoneMsg{err: nil})
	result := model.(*TUI)
	if result.state != StateInput {
		t.Errorf("state = %v, want StateInput", result.state)
	}

	tui.state = StateBusy
	model, _ = tui.Update(turnDoneMsg{err: assist.ErrTurnInProgress})
	result = model.(*TUI)
	if !result.statusErr {
		t.Error("turn error should set error status")
	}
}

func TestNotificationUpdatesStatus(t *testing.T) {
	tui := newTestTUI(t)
	tui.notifCh = make(chan assist.Notification)

	model, cmd := tui.Update(notificationMsg{note: assist.Notification{
		Level:   assist.LevelInfo,
		Title:   "Voice",
		Message: "Listening...",
	}})
	result := model.(*TUI)

	if !strings.Contains(result.status, "Listening...") {
		t.Errorf("status = %q, want notification text", result.status)
	}
	if cmd == nil {
		t.Error("notification handling should re-arm the listener")
	}
}

func TestViewRendersTranscript(t *testing.T) {
	tui := newTestTUI(t)
	chatID := tui.chats.ActiveChatID()
	if _, err := tui.chats.AddMessage(context.Background(), chatID, chat.Message{
		Sender: chat.SenderUser,
		Text:   "what is the capital of France",
	}); err != nil {
		t.Fatal(err)
	}
	tui.rebuildViewportContent()

	view := tui.View()
	if view.Content == nil {
		t.Fatal("view content should not be nil")
	}
}

func TestTurnErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{assist.ErrEmptyTurn, "Nothing to send"},
		{assist.ErrTurnInProgress, "already being generated"},
		{assist.ErrNoPreviousTurn, "No previous message"},
		{chat.ErrNoActiveChat, "No active chat"},
		{errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		if got := turnErrorStatus(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("turnErrorStatus(%v) = %q, want substring %q", tt.err, got, tt.want)
		}
	}
}

func TestNotifierNeverBlocks(t *testing.T) {
	n := NewNotifier()
	for i := 0; i < 100; i++ {
		n.Notify(assist.Notification{Title: "t", Message: "m"})
	}
	select {
	case <-n.C():
	default:
		t.Error("expected at least one buffered notification")
	}
}

func TestLoadAttachmentDetectsMIME(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	// Minimal PNG signature so content sniffing identifies the type.
	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	if err := os.WriteFile(path, pngHeader, 0o600); err != nil {
		t.Fatal(err)
	}

	file, err := loadAttachment(path)
	if err != nil {
		t.Fatalf("loadAttachment() error = %v", err)
	}
	if file.Type != "image/png" {
		t.Errorf("type = %q, want image/png", file.Type)
	}
	if !strings.HasPrefix(file.DataURI, "data:image/png;base64,") {
		t.Errorf("data URI prefix wrong: %q", file.DataURI[:min(len(file.DataURI), 40)])
	}
	if file.Size != int64(len(pngHeader)) {
		t.Errorf("size = %d, want %d", file.Size, len(pngHeader))
	}
}

func TestLoadAttachmentRejectsDirectory(t *testing.T) {
	if _, err := loadAttachment(t.TempDir()); err == nil {
		t.Error("directories should be rejected")
	}
}
