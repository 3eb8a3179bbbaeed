package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/aetherhq/aether/internal/assist"
	"github.com/aetherhq/aether/internal/chat"
)

// Slash command constants.
const (
	cmdHelp        = "/help"
	cmdNew         = "/new"
	cmdChats       = "/chats"
	cmdSwitch      = "/switch"
	cmdDelete      = "/delete"
	cmdRename      = "/rename"
	cmdRegen       = "/regen"
	cmdStop        = "/stop"
	cmdVoice       = "/voice"
	cmdAttach      = "/attach"
	cmdDetach      = "/detach"
	cmdImage       = "/image"
	cmdImages      = "/images"
	cmdClearImages = "/clearimages"
	cmdFeedback    = "/feedback"
	cmdExit        = "/exit"
	cmdQuit        = "/quit"
)

const helpText = `Commands:
  /new                  start a new chat
  /chats                list chats
  /switch <n>           switch to chat n
  /delete [n]           delete chat n (default: current)
  /rename <title>       rename the current chat
  /regen                regenerate the last reply
  /stop                 stop the running turn
  /voice                start/stop voice input
  /attach <path>        stage a file for the next message
  /detach               drop the staged file
  /image <prompt>       generate an image directly
  /images               list generated images
  /clearimages          clear the image history
  /feedback <up|down> [correction]   rate the last reply
  /help /exit
Shortcuts:
  Enter: send   Shift+Enter: newline   Esc: stop turn
  Ctrl+C: cancel/clear   Ctrl+D: exit   Up/Down: history   PgUp/PgDn: scroll`

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	EscCancel  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		EscCancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
	}
}

//nolint:gocyclo // Keyboard handler requires branching for all key combinations
func (t *TUI) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return t.handleCtrlC()
		case 'd':
			cmd := t.cleanup()
			return t, cmd
		}
	}

	switch k.Code {
	case tea.KeyEnter:
		if t.state == StateInput {
			// Enter without Shift = submit, Shift+Enter = newline
			if k.Mod&tea.ModShift == 0 {
				return t.handleSubmit()
			}
		}

	case tea.KeyUp:
		if t.state == StateInput && t.input.Line() == 0 {
			return t.navigateHistory(-1)
		}

	case tea.KeyDown:
		if t.state == StateInput && t.input.Line() == t.input.LineCount()-1 {
			return t.navigateHistory(1)
		}

	case tea.KeyEscape:
		if t.state == StateBusy {
			t.handler.StopGenerating()
			return t, nil
		}

	case tea.KeyPgUp:
		t.viewport.PageUp()
		return t, nil

	case tea.KeyPgDown:
		t.viewport.PageDown()
		return t, nil
	}

	// Pass keys to textarea for typing - the next message can be
	// prepared while a turn is running.
	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

func (t *TUI) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(t.lastCtrlC) < time.Second {
		cmd := t.cleanup()
		return t, cmd
	}
	t.lastCtrlC = now

	switch t.state {
	case StateInput:
		t.input.Reset()
		return t, nil

	case StateBusy:
		t.handler.StopGenerating()
		return t, nil
	}

	return t, nil
}

func (t *TUI) handleSubmit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(t.input.Value())
	if query == "" && t.staged == nil {
		return t, nil
	}

	if strings.HasPrefix(query, "/") {
		return t.handleSlashCommand(query)
	}

	if query != "" {
		t.history = append(t.history, query)
		if len(t.history) > maxHistory {
			t.history = t.history[len(t.history)-maxHistory:]
		}
		t.historyIdx = len(t.history)
	}

	file := t.staged
	t.staged = nil
	t.input.Reset()
	t.systemNote = ""
	t.state = StateBusy

	return t, tea.Batch(
		t.spinner.Tick,
		t.runTurn(query, file),
	)
}

//nolint:gocyclo // One case per slash command
func (t *TUI) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)
	t.input.Reset()

	switch cmd {
	case cmdHelp:
		t.showSystemText(helpText)

	case cmdNew:
		t.systemNote = ""
		t.chats.CreateNewChat(t.ctx)
		t.rebuildViewportContent()
		t.viewport.GotoBottom()

	case cmdChats:
		t.showSystemText(t.renderChatList())

	case cmdSwitch:
		t.switchChat(args)

	case cmdDelete:
		t.deleteChat(args)

	case cmdRename:
		if args == "" {
			t.setStatus("usage: /rename <title>", true)
			break
		}
		if err := t.chats.UpdateChatTitle(t.ctx, t.chats.ActiveChatID(), args); err != nil {
			t.setStatus("rename failed: "+err.Error(), true)
			break
		}
		t.rebuildViewportContent()

	case cmdRegen:
		t.systemNote = ""
		t.state = StateBusy
		return t, tea.Batch(t.spinner.Tick, t.runRegenerate())

	case cmdStop:
		t.handler.StopGenerating()

	case cmdVoice:
		return t.handleVoice()

	case cmdAttach:
		if args == "" {
			t.setStatus("usage: /attach <path>", true)
			break
		}
		file, err := loadAttachment(args)
		if err != nil {
			t.setStatus("attach failed: "+err.Error(), true)
			break
		}
		t.staged = file
		t.setStatus("staged "+file.Name, false)

	case cmdDetach:
		t.staged = nil
		t.setStatus("staged file dropped", false)

	case cmdImage:
		if args == "" {
			t.setStatus("usage: /image <prompt>", true)
			break
		}
		t.state = StateBusy
		return t, tea.Batch(t.spinner.Tick, t.runStandaloneImage(args))

	case cmdImages:
		t.showSystemText(t.renderGallery())

	case cmdClearImages:
		t.gallery.Clear(t.ctx)
		t.setStatus("image history cleared", false)

	case cmdFeedback:
		return t.handleFeedback(args)

	case cmdExit, cmdQuit:
		cleanupCmd := t.cleanup()
		return t, cleanupCmd

	default:
		t.setStatus("Unknown command: "+cmd, true)
	}

	return t, nil
}

// handleVoice toggles microphone capture. Stopping feeds the
// transcript into a turn together with any staged file.
func (t *TUI) handleVoice() (tea.Model, tea.Cmd) {
	switch t.handler.VoicePhase() {
	case assist.VoiceIdle:
		if err := t.handler.StartRecording(t.ctx); err != nil {
			t.setStatus("voice: "+err.Error(), true)
		}
		return t, nil
	case assist.VoiceRecording:
		file := t.staged
		t.staged = nil
		t.state = StateBusy
		return t, tea.Batch(t.spinner.Tick, t.runStopRecording(file))
	default:
		return t, nil
	}
}

// handleFeedback rates the most recent assistant reply.
func (t *TUI) handleFeedback(args string) (tea.Model, tea.Cmd) {
	kindArg, correction, _ := strings.Cut(args, " ")
	var kind chat.Feedback
	switch kindArg {
	case "up", "+", "positive":
		kind = chat.FeedbackPositive
	case "down", "-", "negative":
		kind = chat.FeedbackNegative
	default:
		t.setStatus("usage: /feedback <up|down> [correction]", true)
		return t, nil
	}

	msgID := t.lastAssistantMessageID()
	if msgID == "" {
		t.setStatus("no assistant reply to rate", true)
		return t, nil
	}

	return t, t.runFeedback(t.chats.ActiveChatID(), msgID, kind, strings.TrimSpace(correction))
}

// lastAssistantMessageID finds the newest finalized assistant message
// in the active chat.
func (t *TUI) lastAssistantMessageID() string {
	active, err := t.chats.ActiveChat()
	if err != nil {
		return ""
	}
	for i := len(active.Messages) - 1; i >= 0; i-- {
		m := active.Messages[i]
		if m.Sender == chat.SenderAI && !m.IsLoading && !m.IsError {
			return m.ID
		}
	}
	return ""
}

// showSystemText appends a local-only note under the transcript. It
// stays until the next turn or chat change clears it.
func (t *TUI) showSystemText(text string) {
	t.systemNote = text
	t.rebuildViewportContent()
	t.viewport.GotoBottom()
}

// renderChatList formats all chats with indices, newest first.
func (t *TUI) renderChatList() string {
	chats := t.chats.Chats()
	activeID := t.chats.ActiveChatID()

	var b strings.Builder
	_, _ = b.WriteString("Chats:\n")
	for i, c := range chats {
		marker := "  "
		if c.ID == activeID {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%d. %s (%d messages)\n", marker, i+1, c.Title, len(c.Messages))
	}
	return b.String()
}

// renderGallery formats the generated image history.
func (t *TUI) renderGallery() string {
	entries := t.gallery.Entries()
	if len(entries) == 0 {
		return "No generated images yet."
	}

	var b strings.Builder
	_, _ = b.WriteString("Generated images:\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "  %d. %s (%s)\n", i+1, e.Prompt, e.Timestamp.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// switchChat activates the chat at the given 1-based index.
func (t *TUI) switchChat(arg string) {
	idx, err := strconv.Atoi(arg)
	chats := t.chats.Chats()
	if err != nil || idx < 1 || idx > len(chats) {
		t.setStatus("usage: /switch <n> (see /chats)", true)
		return
	}
	t.systemNote = ""
	t.chats.SetActiveChatID(t.ctx, chats[idx-1].ID)
	t.rebuildViewportContent()
	t.viewport.GotoBottom()
}

// deleteChat removes the chat at the given 1-based index, or the
// active chat when no index is given.
func (t *TUI) deleteChat(arg string) {
	id := t.chats.ActiveChatID()
	if arg != "" {
		idx, err := strconv.Atoi(arg)
		chats := t.chats.Chats()
		if err != nil || idx < 1 || idx > len(chats) {
			t.setStatus("usage: /delete [n] (see /chats)", true)
			return
		}
		id = chats[idx-1].ID
	}
	if err := t.chats.DeleteChat(t.ctx, id); err != nil {
		t.setStatus("delete failed: "+err.Error(), true)
		return
	}
	t.rebuildViewportContent()
	t.viewport.GotoBottom()
}

func (t *TUI) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(t.history) == 0 {
		return t, nil
	}

	t.historyIdx += delta

	if t.historyIdx < 0 {
		t.historyIdx = 0
	}
	if t.historyIdx > len(t.history) {
		t.historyIdx = len(t.history)
	}

	if t.historyIdx == len(t.history) {
		t.input.SetValue("")
	} else {
		t.input.SetValue(t.history[t.historyIdx])
		t.input.CursorEnd()
	}

	return t, nil
}

// cleanup cancels in-flight work and returns the quit command.
func (t *TUI) cleanup() tea.Cmd {
	t.handler.StopGenerating()

	if t.ctxCancel != nil {
		t.ctxCancel()
		t.ctxCancel = nil
	}

	return tea.Quit
}
