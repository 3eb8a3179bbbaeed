package tui

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	tea "charm.land/bubbletea/v2"

	"github.com/aetherhq/aether/internal/assist"
	"github.com/aetherhq/aether/internal/chat"
)

// maxAttachmentBytes caps files staged with /attach. Attachments
// travel inline as data URIs, so large files would bloat every
// persisted snapshot of the chat.
const maxAttachmentBytes = 10 << 20

// turnDoneMsg signals that an asynchronous turn finished.
type turnDoneMsg struct {
	err error
}

// voiceDoneMsg signals that a stop-recording turn finished.
type voiceDoneMsg struct {
	err error
}

// notificationMsg carries an orchestrator notification into Update.
type notificationMsg struct {
	note assist.Notification
}

// runTurn sends a message through the orchestrator as a Bubble Tea
// command. The transcript updates arrive via the chat repository;
// spinner ticks pick them up while the turn runs.
func (t *TUI) runTurn(query string, file *chat.FileAttachment) tea.Cmd {
	return func() tea.Msg {
		_, err := t.handler.Send(t.ctx, query, file)
		return turnDoneMsg{err: err}
	}
}

// runRegenerate replays the previous turn.
func (t *TUI) runRegenerate() tea.Cmd {
	return func() tea.Msg {
		_, err := t.handler.Regenerate(t.ctx)
		return turnDoneMsg{err: err}
	}
}

// runStandaloneImage generates an image outside the conversation.
func (t *TUI) runStandaloneImage(prompt string) tea.Cmd {
	return func() tea.Msg {
		_, err := t.handler.GenerateImage(t.ctx, prompt)
		return turnDoneMsg{err: err}
	}
}

// runStopRecording ends voice capture and feeds the transcript into a
// turn. The staged file, if any, travels with it.
func (t *TUI) runStopRecording(file *chat.FileAttachment) tea.Cmd {
	return func() tea.Msg {
		_, err := t.handler.StopRecording(t.ctx, file)
		return voiceDoneMsg{err: err}
	}
}

// runFeedback rates an assistant message in the background.
func (t *TUI) runFeedback(chatID, messageID string, kind chat.Feedback, correction string) tea.Cmd {
	return func() tea.Msg {
		if err := t.handler.RecordFeedback(t.ctx, chatID, messageID, kind, correction); err != nil {
			return notificationMsg{note: assist.Notification{
				Level:   assist.LevelError,
				Title:   "Feedback",
				Message: err.Error(),
			}}
		}
		return nil
	}
}

// listenForNotifications waits for the next orchestrator notification.
// Update re-issues this command after each delivery.
func listenForNotifications(ch <-chan assist.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg{note: n}
	}
}

// turnErrorStatus maps orchestrator errors to status bar text.
func turnErrorStatus(err error) string {
	switch {
	case errors.Is(err, assist.ErrEmptyTurn):
		return "Nothing to send"
	case errors.Is(err, assist.ErrTurnInProgress):
		return "A reply is already being generated"
	case errors.Is(err, assist.ErrNoPreviousTurn):
		return "No previous message to regenerate"
	case errors.Is(err, chat.ErrNoActiveChat):
		return "No active chat. Use /new to start one."
	default:
		return "Error: " + err.Error()
	}
}

// loadAttachment reads a local file into an inline attachment.
// MIME type comes from content sniffing, with the file extension as
// fallback for types the sniffer cannot identify.
func loadAttachment(path string) (*chat.FileAttachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxAttachmentBytes {
		return nil, fmt.Errorf("%s is too large (%d bytes, limit %d)", path, info.Size(), maxAttachmentBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	mimeType := http.DetectContentType(data)
	if mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
			mimeType = byExt
		}
	}

	return &chat.FileAttachment{
		Name:    filepath.Base(path),
		Type:    mimeType,
		Size:    int64(len(data)),
		DataURI: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Notifier bridges orchestrator notifications into the Bubble Tea
// event loop over a buffered channel. Notify never blocks; when the
// buffer is full the oldest pending notification is dropped.
type Notifier struct {
	ch chan assist.Notification
}

// NewNotifier creates a channel-backed notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan assist.Notification, 16)}
}

// Notify implements assist.Notifier.
func (n *Notifier) Notify(note assist.Notification) {
	for {
		select {
		case n.ch <- note:
			return
		default:
		}
		select {
		case <-n.ch:
		default:
		}
	}
}

// C exposes the receive side for the TUI event loop.
func (n *Notifier) C() <-chan assist.Notification {
	return n.ch
}
