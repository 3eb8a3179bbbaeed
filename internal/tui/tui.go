// Package tui provides the Bubble Tea terminal interface for Aether.
//
// The transcript is rendered from the chat repository on every
// rebuild, so the view always reflects the orchestrator's incremental
// message updates. Turns run as asynchronous commands; spinner ticks
// refresh the viewport while a turn is in flight.
package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/aetherhq/aether/internal/assist"
	"github.com/aetherhq/aether/internal/chat"
	"github.com/aetherhq/aether/internal/gallery"
)

// State represents TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput State = iota // Awaiting user input
	StateBusy               // A turn is running
)

// maxHistory caps the command history entries.
const maxHistory = 100

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Two separator lines (above and below input)
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// statusTTL is how long a transient notification stays in the bar.
const statusTTL = 5 * time.Second

// TUI is the Bubble Tea model for the Aether terminal interface.
type TUI struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time

	// Staged attachment, sent with the next message
	staged *chat.FileAttachment

	// Transient notification shown in the status bar
	status     string
	statusErr  bool
	statusTime time.Time

	// Local-only command output appended after the transcript
	systemNote string

	// Output
	spinner spinner.Model
	viewBuf strings.Builder // Reusable buffer for View() to reduce allocations

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Dependencies (direct, no interface)
	handler *assist.Handler
	chats   *chat.Repository
	gallery *gallery.Repository
	notifCh <-chan assist.Notification

	ctx       context.Context
	ctxCancel context.CancelFunc // For canceling all operations on exit

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// New creates a TUI model for chat interaction.
// Returns error if required dependencies are nil.
//
// IMPORTANT: ctx MUST be the same context passed to tea.WithContext()
// to ensure consistent cancellation behavior.
func New(ctx context.Context, handler *assist.Handler, chats *chat.Repository, images *gallery.Repository, notifCh <-chan assist.Notification) (*TUI, error) {
	if handler == nil {
		return nil, errors.New("tui.New: handler is required")
	}
	if chats == nil {
		return nil, errors.New("tui.New: chat repository is required")
	}
	if images == nil {
		return nil, errors.New("tui.New: gallery repository is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	// Create cancellable context for cleanup on exit
	ctx, cancel := context.WithCancel(ctx)

	// Create textarea for multi-line input
	// Enter submits, Shift+Enter adds newline (default behavior)
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	// Clean, minimal styling: no background colors, just simple text
	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Viewport for scrollable transcript. Built-in key handling is
	// disabled; keys are routed explicitly in handleKey.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	h := help.New()

	t := &TUI{
		handler:   handler,
		chats:     chats,
		gallery:   images,
		notifCh:   notifCh,
		ctx:       ctx,
		ctxCancel: cancel,
		input:     ta,
		spinner:   sp,
		viewport:  vp,
		help:      h,
		keys:      newKeyMap(),
		styles:    DefaultStyles(),
		history:   make([]string, 0, maxHistory),
		markdown:  newMarkdownRenderer(80),
		width:     80, // Default width until WindowSizeMsg arrives
	}
	t.rebuildViewportContent()
	return t, nil
}

// Init implements tea.Model.
func (t *TUI) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		t.spinner.Tick,
		t.input.Focus(),
	}
	if t.notifCh != nil {
		cmds = append(cmds, listenForNotifications(t.notifCh))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return t.handleKey(msg)

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		inputHeight := t.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		t.viewport.SetWidth(msg.Width)
		t.viewport.SetHeight(vpHeight)
		t.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		t.help.SetWidth(msg.Width)
		t.markdown.UpdateWidth(msg.Width)

		t.rebuildViewportContent()
		return t, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		// The orchestrator updates messages incrementally; ticks keep
		// the in-flight transcript fresh.
		if t.state == StateBusy {
			t.rebuildViewportContent()
			t.viewport.GotoBottom()
		}
		return t, cmd

	case turnDoneMsg:
		t.state = StateInput
		if msg.err != nil {
			t.setStatus(turnErrorStatus(msg.err), true)
		}
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.input.Focus()

	case voiceDoneMsg:
		t.state = StateInput
		if msg.err != nil && !errors.Is(msg.err, assist.ErrNotRecording) {
			t.setStatus("Voice input failed", true)
		}
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.input.Focus()

	case notificationMsg:
		t.setStatus(msg.note.Title+": "+msg.note.Message, msg.note.Level == assist.LevelError)
		return t, listenForNotifications(t.notifCh)
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

// View implements tea.Model.
// Uses AltScreen with viewport for scrollable message history.
func (t *TUI) View() tea.View {
	t.viewBuf.Reset()

	_, _ = t.viewBuf.WriteString(t.viewport.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	// Input prompt - always visible so the next message can be typed
	// while a turn is running.
	_, _ = t.viewBuf.WriteString(t.styles.Prompt.Render("> "))
	_, _ = t.viewBuf.WriteString(t.input.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderStatusBar())

	v := tea.NewView(t.viewBuf.String())
	v.AltScreen = true
	return v
}

// setStatus records a transient status bar message.
func (t *TUI) setStatus(text string, isErr bool) {
	t.status = text
	t.statusErr = isErr
	t.statusTime = time.Now()
}

// rebuildViewportContent rerenders the transcript from the repository.
func (t *TUI) rebuildViewportContent() {
	var b strings.Builder

	_, _ = b.WriteString(t.styles.RenderBanner())
	_, _ = b.WriteString("\n")

	active, err := t.chats.ActiveChat()
	if err != nil {
		_, _ = b.WriteString(t.styles.System.Render("No active chat. Use /new to start one."))
		_, _ = b.WriteString("\n")
		if t.systemNote != "" {
			_, _ = b.WriteString(t.styles.System.Render(t.systemNote))
			_, _ = b.WriteString("\n")
		}
		t.viewport.SetContent(b.String())
		return
	}

	if active.Title != chat.DefaultTitle {
		_, _ = b.WriteString(t.styles.Header.Render("# " + active.Title))
		_, _ = b.WriteString("\n\n")
	}
	if len(active.Messages) == 0 {
		_, _ = b.WriteString(t.styles.RenderWelcomeTips())
		_, _ = b.WriteString("\n")
	}

	for _, m := range active.Messages {
		t.renderMessage(&b, m)
	}

	if t.systemNote != "" {
		_, _ = b.WriteString(t.styles.System.Render(t.systemNote))
		_, _ = b.WriteString("\n")
	}

	t.viewport.SetContent(b.String())
}

// renderMessage renders one transcript entry.
func (t *TUI) renderMessage(b *strings.Builder, m chat.Message) {
	switch {
	case m.Sender == chat.SenderUser:
		_, _ = b.WriteString(t.styles.User.Render("You> "))
		_, _ = b.WriteString(m.Text)
		if m.File != nil {
			_, _ = b.WriteString(t.styles.System.Render(" [attached: " + m.File.Name + "]"))
		}

	case m.IsLoading:
		_, _ = b.WriteString(t.styles.Assistant.Render("Aether> "))
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(t.styles.System.Render(" Thinking..."))

	case m.IsError:
		_, _ = b.WriteString(t.styles.Assistant.Render("Aether> "))
		_, _ = b.WriteString(t.styles.Error.Render(m.Text))

	default:
		_, _ = b.WriteString(t.styles.Assistant.Render("Aether> "))
		_, _ = b.WriteString(t.markdown.Render(m.Text))
		if m.File != nil {
			_, _ = b.WriteString("\n")
			_, _ = b.WriteString(t.styles.System.Render("[image: " + m.File.Name + "]"))
		}
		if m.AnalyzedInfo != nil {
			_, _ = b.WriteString("\n")
			_, _ = b.WriteString(t.styles.System.Render(renderConfidence(m.AnalyzedInfo.ConfidenceLevel)))
		}
		switch m.Feedback {
		case chat.FeedbackPositive:
			_, _ = b.WriteString(t.styles.System.Render(" [+1]"))
		case chat.FeedbackNegative:
			_, _ = b.WriteString(t.styles.System.Render(" [-1]"))
		}
	}
	_, _ = b.WriteString("\n\n")
}

// renderConfidence formats an analysis confidence level.
func renderConfidence(level float64) string {
	pct := int(level * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return "confidence: " + strconv.Itoa(pct) + "%"
}

// renderSeparator returns a horizontal line separator.
func (t *TUI) renderSeparator() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return t.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns the status line: transient notification if
// fresh, otherwise state-appropriate keyboard shortcut help.
func (t *TUI) renderStatusBar() string {
	if t.status != "" && time.Since(t.statusTime) < statusTTL {
		style := t.styles.StatusBar
		if t.statusErr {
			style = t.styles.Error
		}
		extras := t.statusExtras()
		if extras != "" {
			return style.Render(t.status) + "  " + t.styles.System.Render(extras)
		}
		return style.Render(t.status)
	}

	var bindings []key.Binding
	switch t.state {
	case StateInput:
		bindings = []key.Binding{
			t.keys.Submit, t.keys.NewLine, t.keys.History,
			t.keys.Cancel, t.keys.Quit, t.keys.ScrollUp,
		}
	case StateBusy:
		bindings = []key.Binding{
			t.keys.EscCancel, t.keys.Cancel,
			t.keys.ScrollUp, t.keys.ScrollDown,
		}
	}

	bar := t.help.ShortHelpView(bindings)
	if extras := t.statusExtras(); extras != "" {
		bar += "  " + t.styles.System.Render(extras)
	}
	return bar
}

// statusExtras renders persistent indicators: staged attachment and
// voice phase.
func (t *TUI) statusExtras() string {
	var parts []string
	if t.staged != nil {
		parts = append(parts, "[staged: "+t.staged.Name+"]")
	}
	if phase := t.handler.VoicePhase(); phase != assist.VoiceIdle {
		parts = append(parts, "["+phase.String()+"]")
	}
	return strings.Join(parts, " ")
}
