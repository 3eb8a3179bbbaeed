package assist

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aetherhq/aether/internal/chat"
	"github.com/aetherhq/aether/internal/gallery"
)

// Config tunes the orchestrator.
type Config struct {
	// HistoryWindow is how many trailing messages are serialized as
	// context for query interpretation.
	HistoryWindow int

	// KnowledgeWindow is how many trailing assistant replies are
	// offered as knowledge base for response generation.
	KnowledgeWindow int

	// Language steers the reply language of response generation.
	Language string

	// VoiceOutput speaks finalized replies (and error reports) aloud.
	VoiceOutput bool

	// VoiceLanguageCode is the BCP-47 code for speech synthesis and
	// the transcription hint.
	VoiceLanguageCode string

	// Vocabulary overrides the trigger phrases; empty lists keep the
	// defaults.
	Vocabulary Vocabulary
}

// HandlerParams collects the handler's collaborators.
type HandlerParams struct {
	Service  Service
	Chats    *chat.Repository
	Gallery  *gallery.Repository
	Recorder Recorder // optional; voice capture disabled when nil
	Player   Player   // optional; synthesized audio is dropped when nil
	Notifier Notifier // optional; defaults to NopNotifier
	Logger   *slog.Logger
	Config   Config
}

// Handler is the message orchestrator. For each user turn it runs the
// pipeline: interpret, retrieve context, branch on intent, generate,
// optionally speak, incrementally finalizing one in-flight assistant
// message. It also owns cancellation, regeneration of the last turn,
// voice capture and feedback recording.
//
// Only one turn runs at a time; concurrent Send calls are rejected
// with ErrTurnInProgress. Cancellation is cooperative: stopping a turn
// suppresses applying further results, it does not kill in-flight
// calls.
type Handler struct {
	svc      Service
	chats    *chat.Repository
	gallery  *gallery.Repository
	recorder Recorder
	player   Player
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	mu        sync.Mutex
	busy      bool
	cancel    context.CancelFunc
	lastQuery string
	lastFile  *chat.FileAttachment
	hasLast   bool
	voice     VoicePhase

	feedbackMu    sync.Mutex
	feedbackLocks map[string]*sync.Mutex
}

// NewHandler validates collaborators and returns a ready handler.
func NewHandler(p HandlerParams) (*Handler, error) {
	if p.Service == nil {
		return nil, fmt.Errorf("assist: Service is required")
	}
	if p.Chats == nil {
		return nil, fmt.Errorf("assist: chat repository is required")
	}
	if p.Gallery == nil {
		return nil, fmt.Errorf("assist: gallery repository is required")
	}
	if p.Notifier == nil {
		p.Notifier = NopNotifier{}
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Config.HistoryWindow <= 0 {
		p.Config.HistoryWindow = 5
	}
	if p.Config.KnowledgeWindow <= 0 {
		p.Config.KnowledgeWindow = 3
	}
	p.Config.Vocabulary = p.Config.Vocabulary.Normalized()

	return &Handler{
		svc:           p.Service,
		chats:         p.Chats,
		gallery:       p.Gallery,
		recorder:      p.Recorder,
		player:        p.Player,
		notifier:      p.Notifier,
		logger:        p.Logger,
		cfg:           p.Config,
		now:           time.Now,
		feedbackLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Send runs one user turn: records the user message, then drives the
// pipeline against a fresh in-flight assistant message. It returns the
// assistant message id.
//
// Only precondition failures (blank turn, no active chat, turn already
// running) are returned as errors; pipeline failures are finalized
// into the assistant message and reported via the notifier.
func (h *Handler) Send(ctx context.Context, query string, file *chat.FileAttachment) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" && file == nil {
		return "", ErrEmptyTurn
	}

	active, err := h.chats.ActiveChat()
	if err != nil {
		h.notifier.Notify(Notification{Level: LevelError, Title: "Error", Message: "No active chat selected."})
		return "", err
	}

	turnCtx, err := h.beginTurn(ctx)
	if err != nil {
		h.notifier.Notify(Notification{Level: LevelError, Title: "Busy", Message: "Please wait for the current response to finish."})
		return "", err
	}
	defer h.endTurn()

	// Repository writes must survive turn cancellation: a stopped turn
	// still finalizes its message.
	persistCtx := context.WithoutCancel(ctx)

	text := query
	if text == "" {
		text = "File attached"
	}
	if _, err := h.chats.AddMessage(persistCtx, active.ID, chat.Message{
		Sender: chat.SenderUser,
		Text:   text,
		File:   file,
	}); err != nil {
		return "", fmt.Errorf("recording user turn: %w", err)
	}

	h.mu.Lock()
	h.lastQuery = query
	h.lastFile = file
	h.hasLast = true
	h.mu.Unlock()

	return h.runTurn(turnCtx, persistCtx, active.ID, query, file)
}

// Regenerate replays the pipeline for the last recorded turn against a
// new assistant message. The user message is not re-appended; history
// is additive.
func (h *Handler) Regenerate(ctx context.Context) (string, error) {
	h.mu.Lock()
	hasLast, query, file := h.hasLast, h.lastQuery, h.lastFile
	h.mu.Unlock()
	if !hasLast {
		return "", ErrNoPreviousTurn
	}

	active, err := h.chats.ActiveChat()
	if err != nil {
		h.notifier.Notify(Notification{Level: LevelError, Title: "Error", Message: "No active chat selected."})
		return "", err
	}

	turnCtx, err := h.beginTurn(ctx)
	if err != nil {
		h.notifier.Notify(Notification{Level: LevelError, Title: "Busy", Message: "Please wait for the current response to finish."})
		return "", err
	}
	defer h.endTurn()

	return h.runTurn(turnCtx, context.WithoutCancel(ctx), active.ID, query, file)
}

// StopGenerating cancels the running turn, if any. The in-flight
// assistant message is finalized with whatever partial state exists.
func (h *Handler) StopGenerating() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// IsGenerating reports whether a turn is currently running.
func (h *Handler) IsGenerating() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.busy
}

// GenerateImage renders an image outside the chat pipeline (the
// standalone generator surface) and records it in the gallery.
func (h *Handler) GenerateImage(ctx context.Context, prompt string) (gallery.Entry, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return gallery.Entry{}, fmt.Errorf("%w: prompt is empty", ErrEmptyTurn)
	}

	resp, err := h.svc.GenerateImage(ctx, GenerateImageRequest{Prompt: prompt})
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("generating image: %w", err)
	}

	entry := gallery.Entry{
		Prompt:        prompt,
		ImageDataURI:  resp.ImageDataURI,
		RevisedPrompt: resp.RevisedPrompt,
	}
	entry.ID = h.gallery.Add(context.WithoutCancel(ctx), entry)
	return entry, nil
}

// beginTurn acquires the single-turn slot and derives the turn context.
func (h *Handler) beginTurn(ctx context.Context) (context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.busy {
		return nil, ErrTurnInProgress
	}
	turnCtx, cancel := context.WithCancel(ctx)
	h.busy = true
	h.cancel = cancel
	return turnCtx, nil
}

func (h *Handler) endTurn() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.busy = false
}

// turnResult is what a pipeline branch produces for the finalize step.
type turnResult struct {
	text     string
	file     *chat.FileAttachment
	analyzed *chat.AnalyzedInfo
}

// runTurn drives pipeline steps 3-8 for one turn: placeholder
// creation, interpretation, context retrieval, intent branching,
// finalization and optional speech. Every exit path clears the
// placeholder's loading flag.
func (h *Handler) runTurn(turnCtx, persistCtx context.Context, chatID, query string, file *chat.FileAttachment) (string, error) {
	assistantID, err := h.chats.AddMessage(persistCtx, chatID, chat.Message{
		Sender:    chat.SenderAI,
		IsLoading: true,
	})
	if err != nil {
		return "", fmt.Errorf("creating assistant placeholder: %w", err)
	}

	// Snapshot the conversation before this turn's placeholder.
	snapshot, err := h.chats.Chat(chatID)
	if err != nil {
		h.finalizeError(persistCtx, chatID, assistantID, err)
		return assistantID, nil
	}
	history := withoutMessage(snapshot.Messages, assistantID)

	interp, err := h.svc.InterpretQuery(turnCtx, InterpretRequest{
		Query:   query,
		Context: serializeHistory(history, h.cfg.HistoryWindow),
	})
	if err != nil {
		h.finalizeFailure(turnCtx, persistCtx, chatID, assistantID, err)
		return assistantID, nil
	}
	if h.canceled(turnCtx) {
		h.finalizeCanceled(persistCtx, chatID, assistantID)
		return assistantID, nil
	}

	if err := h.chats.UpdateMessage(persistCtx, chatID, assistantID, chat.MessageUpdate{
		Intent:          chat.Ptr(interp.Intent),
		RequiresContext: chat.Ptr(interp.RequiresContext),
	}); err != nil {
		h.logger.Warn("updating interpretation on placeholder", "error", err)
	}

	// Context retrieval is best-effort: failures degrade to an empty
	// snippet list instead of aborting the turn.
	var retrieved []string
	if rc, err := h.svc.RetrieveContext(turnCtx, RetrieveRequest{QueryText: interp.Intent}); err != nil {
		h.logger.Debug("context retrieval failed, continuing without", "error", err)
	} else {
		retrieved = rc.RelevantContexts
	}
	if h.canceled(turnCtx) {
		h.finalizeCanceled(persistCtx, chatID, assistantID)
		return assistantID, nil
	}

	// Intent branches, first match wins.
	branches := []struct {
		name  string
		match func() bool
		run   func(context.Context) (turnResult, error)
	}{
		{
			name: "image",
			match: func() bool {
				if file != nil {
					return false
				}
				_, inQuery := h.cfg.Vocabulary.MatchImage(query)
				_, inIntent := h.cfg.Vocabulary.MatchImage(interp.Intent)
				return inQuery || inIntent
			},
			run: func(ctx context.Context) (turnResult, error) {
				return h.runImageBranch(ctx, persistCtx, query, interp.Intent)
			},
		},
		{
			name:  "file",
			match: func() bool { return file != nil },
			run: func(ctx context.Context) (turnResult, error) {
				return h.runFileBranch(ctx, file, interp.Intent)
			},
		},
		{
			name:  "analysis",
			match: func() bool { return h.cfg.Vocabulary.MatchesAnalysis(interp.Intent) },
			run: func(ctx context.Context) (turnResult, error) {
				return h.runAnalysisBranch(ctx, query, interp.Intent)
			},
		},
		{
			name:  "conversation",
			match: func() bool { return true },
			run: func(ctx context.Context) (turnResult, error) {
				return h.runConversationBranch(ctx, interp.Intent, history, retrieved)
			},
		},
	}

	var result turnResult
	for _, b := range branches {
		if !b.match() {
			continue
		}
		h.logger.Debug("selected intent branch", "branch", b.name, "intent", interp.Intent)
		result, err = b.run(turnCtx)
		break
	}
	if err != nil {
		h.finalizeFailure(turnCtx, persistCtx, chatID, assistantID, err)
		return assistantID, nil
	}
	if h.canceled(turnCtx) {
		h.finalizeCanceled(persistCtx, chatID, assistantID)
		return assistantID, nil
	}

	update := chat.MessageUpdate{
		Text:      chat.Ptr(result.text),
		IsLoading: chat.Ptr(false),
	}
	if result.file != nil {
		update.File = result.file
	}
	if result.analyzed != nil {
		update.AnalyzedInfo = result.analyzed
	}
	if err := h.chats.UpdateMessage(persistCtx, chatID, assistantID, update); err != nil {
		h.logger.Warn("finalizing assistant message", "error", err)
	}

	// Speech is decorative: it never alters finalized message content.
	if h.cfg.VoiceOutput && strings.TrimSpace(result.text) != "" && !h.canceled(turnCtx) {
		h.speak(turnCtx, result.text)
	}

	return assistantID, nil
}

// runImageBranch extracts an image prompt, generates the image,
// synthesizes an attachment from the returned bytes and records a
// gallery entry.
func (h *Handler) runImageBranch(ctx, persistCtx context.Context, query, intent string) (turnResult, error) {
	prompt := h.cfg.Vocabulary.ExtractImagePrompt(query, intent)

	resp, err := h.svc.GenerateImage(ctx, GenerateImageRequest{Prompt: prompt})
	if err != nil {
		return turnResult{}, fmt.Errorf("generating image: %w", err)
	}

	attachment := &chat.FileAttachment{
		Name:    imageFileName(prompt, h.now()),
		Type:    "image/png",
		Size:    dataURISize(resp.ImageDataURI),
		DataURI: resp.ImageDataURI,
	}

	caption := resp.RevisedPrompt
	if caption == "" {
		caption = "Generated image for: " + prompt
	}

	h.gallery.Add(persistCtx, gallery.Entry{
		Prompt:        prompt,
		ImageDataURI:  resp.ImageDataURI,
		RevisedPrompt: resp.RevisedPrompt,
	})

	return turnResult{text: caption, file: attachment}, nil
}

// runFileBranch answers the query about the attached file, adding an
// analysis pass when the intent asks for one. A failed analysis keeps
// the answer and drops only the enrichment.
func (h *Handler) runFileBranch(ctx context.Context, file *chat.FileAttachment, intent string) (turnResult, error) {
	resp, err := h.svc.ProcessFile(ctx, ProcessFileRequest{
		FileDataURI: file.DataURI,
		Query:       intent,
	})
	if err != nil {
		return turnResult{}, fmt.Errorf("processing file: %w", err)
	}

	result := turnResult{text: resp.Answer}

	if h.cfg.Vocabulary.MatchesFileAnalysis(intent) {
		analysis, err := h.svc.AnalyzeInformation(ctx, AnalyzeRequest{
			Information: resp.Answer,
			Query:       intent,
		})
		if err != nil {
			h.logger.Warn("file analysis enrichment failed", "error", err)
			h.notifier.Notify(Notification{Level: LevelError, Title: "Analysis Error", Message: "Could not analyze the file contents."})
			return result, nil
		}
		result.analyzed = &chat.AnalyzedInfo{
			Summary:         analysis.Summary,
			KeyInsights:     analysis.KeyInsights,
			ConfidenceLevel: clamp01(analysis.ConfidenceLevel),
		}
	}

	return result, nil
}

// runAnalysisBranch analyzes the raw query text and formats the
// structured result into the reply.
func (h *Handler) runAnalysisBranch(ctx context.Context, query, intent string) (turnResult, error) {
	analysis, err := h.svc.AnalyzeInformation(ctx, AnalyzeRequest{
		Information: query,
		Query:       intent,
	})
	if err != nil {
		return turnResult{}, fmt.Errorf("analyzing information: %w", err)
	}

	return turnResult{
		text: fmt.Sprintf("%s\n\nKey Insights: %s", analysis.Summary, analysis.KeyInsights),
		analyzed: &chat.AnalyzedInfo{
			Summary:         analysis.Summary,
			KeyInsights:     analysis.KeyInsights,
			ConfidenceLevel: clamp01(analysis.ConfidenceLevel),
		},
	}, nil
}

// runConversationBranch is the default: a conversational reply seeded
// with recent assistant texts and any retrieved context.
func (h *Handler) runConversationBranch(ctx context.Context, intent string, history []chat.Message, retrieved []string) (turnResult, error) {
	resp, err := h.svc.GenerateResponse(ctx, GenerateRequest{
		Query:             intent,
		KnowledgeBase:     recentAssistantTexts(history, h.cfg.KnowledgeWindow),
		RetrievedContexts: retrieved,
		Language:          h.cfg.Language,
	})
	if err != nil {
		return turnResult{}, fmt.Errorf("generating response: %w", err)
	}
	return turnResult{text: resp.Response}, nil
}

// speak synthesizes and plays text. All failures are reported via the
// notifier only; the finalized message is never touched.
func (h *Handler) speak(ctx context.Context, text string) {
	resp, err := h.svc.SynthesizeSpeech(ctx, SynthesizeRequest{
		Text:         text,
		LanguageCode: h.cfg.VoiceLanguageCode,
	})
	if err != nil {
		h.logger.Warn("speech synthesis failed", "error", err)
		h.notifier.Notify(Notification{Level: LevelError, Title: "Voice Output Error", Message: "Could not generate speech."})
		return
	}
	if h.player == nil {
		return
	}
	if err := h.player.Play(ctx, resp.AudioDataURI); err != nil {
		h.logger.Warn("audio playback failed", "error", err)
		h.notifier.Notify(Notification{Level: LevelError, Title: "Voice Output Error", Message: "Could not play audio."})
	}
}

func (h *Handler) canceled(ctx context.Context) bool {
	return ctx.Err() != nil
}

// finalizeFailure routes a failed pipeline step. A step that failed
// because the turn was stopped is not an error: real backends surface
// context.Canceled from in-flight calls after StopGenerating, and that
// must finalize as a stop, not an error bubble.
func (h *Handler) finalizeFailure(turnCtx, persistCtx context.Context, chatID, messageID string, cause error) {
	if errors.Is(cause, context.Canceled) || turnCtx.Err() != nil {
		h.finalizeCanceled(persistCtx, chatID, messageID)
		return
	}
	h.finalizeError(persistCtx, chatID, messageID, cause)
}

// finalizeError closes the in-flight message as an error and raises a
// notification. With voice output on, the error is also spoken so the
// failure is audible.
func (h *Handler) finalizeError(persistCtx context.Context, chatID, messageID string, cause error) {
	h.logger.Error("turn failed", "chat_id", chatID, "error", cause)

	text := fmt.Sprintf("Sorry, I encountered an error: %v", cause)
	if err := h.chats.UpdateMessage(persistCtx, chatID, messageID, chat.MessageUpdate{
		Text:      chat.Ptr(text),
		IsLoading: chat.Ptr(false),
		IsError:   chat.Ptr(true),
	}); err != nil {
		h.logger.Warn("finalizing errored message", "error", err)
	}

	h.notifier.Notify(Notification{Level: LevelError, Title: "Error", Message: "Could not process your request."})

	if h.cfg.VoiceOutput {
		h.speak(persistCtx, "Sorry, I encountered an error.")
	}
}

// finalizeCanceled closes the in-flight message with whatever partial
// state exists at cancellation time.
func (h *Handler) finalizeCanceled(persistCtx context.Context, chatID, messageID string) {
	update := chat.MessageUpdate{IsLoading: chat.Ptr(false)}

	msg, err := h.chats.Message(chatID, messageID)
	if err == nil && msg.Text == "" {
		update.Text = chat.Ptr("Generation stopped.")
	}

	if err := h.chats.UpdateMessage(persistCtx, chatID, messageID, update); err != nil {
		h.logger.Warn("finalizing canceled message", "error", err)
	}
}

// withoutMessage filters one message id out of a transcript.
func withoutMessage(messages []chat.Message, id string) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// serializeHistory renders the last n messages one per line as
// "sender: text", substituting "file" for text-less attachments.
func serializeHistory(messages []chat.Message, n int) string {
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		text := m.Text
		if text == "" {
			text = "file"
		}
		lines = append(lines, string(m.Sender)+": "+text)
	}
	return strings.Join(lines, "\n")
}

// recentAssistantTexts returns the last n non-empty assistant texts in
// conversation order.
func recentAssistantTexts(messages []chat.Message, n int) []string {
	var texts []string
	for _, m := range messages {
		if m.Sender == chat.SenderAI && m.Text != "" && !m.IsError {
			texts = append(texts, m.Text)
		}
	}
	if len(texts) > n {
		texts = texts[len(texts)-n:]
	}
	return texts
}

// clamp01 bounds a confidence level to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// imageFileName derives a deterministic attachment name from a
// sanitized prompt prefix plus a timestamp.
func imageFileName(prompt string, t time.Time) string {
	var b strings.Builder
	for _, r := range strings.ToLower(prompt) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
		if b.Len() >= 24 {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "generated-image"
	}
	return fmt.Sprintf("%s-%d.png", slug, t.Unix())
}

// dataURISize estimates the decoded byte size of a data URI payload.
func dataURISize(dataURI string) int64 {
	idx := strings.Index(dataURI, ",")
	if idx < 0 {
		return 0
	}
	payload := dataURI[idx+1:]
	return int64(base64.StdEncoding.DecodedLen(len(payload)))
}
