package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/aetherhq/aether/internal/chat"
)

// Recorder captures microphone audio. Start begins capture; Stop ends
// it and returns the recorded audio as a data URI.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
}

// Player plays back synthesized audio from a data URI.
type Player interface {
	Play(ctx context.Context, audioDataURI string) error
}

// VoicePhase is the state of the voice input lifecycle.
type VoicePhase int

const (
	VoiceIdle VoicePhase = iota
	VoiceRecording
	VoiceTranscribing
)

func (p VoicePhase) String() string {
	switch p {
	case VoiceRecording:
		return "recording"
	case VoiceTranscribing:
		return "transcribing"
	default:
		return "idle"
	}
}

// VoicePhase reports the current voice input state.
func (h *Handler) VoicePhase() VoicePhase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.voice
}

// StartRecording begins microphone capture. A capture failure leaves
// the handler idle and raises a microphone notification, distinct from
// pipeline errors.
func (h *Handler) StartRecording(ctx context.Context) error {
	if h.recorder == nil {
		return ErrVoiceUnavailable
	}

	h.mu.Lock()
	if h.voice != VoiceIdle {
		h.mu.Unlock()
		return ErrAlreadyRecording
	}
	h.voice = VoiceRecording
	h.mu.Unlock()

	if err := h.recorder.Start(ctx); err != nil {
		h.setVoicePhase(VoiceIdle)
		h.logger.Warn("microphone capture failed to start", "error", err)
		h.notifier.Notify(Notification{Level: LevelError, Title: "Microphone Error", Message: "Could not access the microphone."})
		return fmt.Errorf("starting recording: %w", err)
	}

	h.notifier.Notify(Notification{Level: LevelInfo, Title: "Listening...", Message: "Speak now, stop to send."})
	return nil
}

// StopRecording ends capture, transcribes the audio and feeds the
// transcript into Send along with any staged file attachment. It
// returns the assistant message id of the resulting turn.
//
// A transcription failure posts an error message directly into the
// active chat instead of starting a turn.
func (h *Handler) StopRecording(ctx context.Context, staged *chat.FileAttachment) (string, error) {
	if h.recorder == nil {
		return "", ErrVoiceUnavailable
	}

	h.mu.Lock()
	if h.voice != VoiceRecording {
		h.mu.Unlock()
		return "", ErrNotRecording
	}
	h.voice = VoiceTranscribing
	h.mu.Unlock()

	audioURI, err := h.recorder.Stop(ctx)
	if err != nil {
		h.setVoicePhase(VoiceIdle)
		h.logger.Warn("microphone capture failed to stop", "error", err)
		h.notifier.Notify(Notification{Level: LevelError, Title: "Microphone Error", Message: "Could not capture audio."})
		return "", fmt.Errorf("stopping recording: %w", err)
	}

	resp, err := h.svc.TranscribeAudio(ctx, TranscribeRequest{
		AudioDataURI: audioURI,
		LanguageHint: h.cfg.VoiceLanguageCode,
	})
	transcript := ""
	if err == nil {
		transcript = strings.TrimSpace(resp.TranscribedText)
	}
	if err != nil || transcript == "" {
		h.setVoicePhase(VoiceIdle)
		h.logger.Warn("transcription failed", "error", err)
		h.postVoiceError(ctx)
		if err == nil {
			err = fmt.Errorf("transcription produced no text")
		}
		return "", fmt.Errorf("transcribing audio: %w", err)
	}

	h.setVoicePhase(VoiceIdle)
	h.notifier.Notify(Notification{
		Level:   LevelInfo,
		Title:   "Voice Input",
		Message: fmt.Sprintf("You said: %q", transcript),
	})

	return h.Send(ctx, transcript, staged)
}

func (h *Handler) setVoicePhase(p VoicePhase) {
	h.mu.Lock()
	h.voice = p
	h.mu.Unlock()
}

// postVoiceError records a standalone assistant error message; there
// is no in-flight placeholder to finalize at this point.
func (h *Handler) postVoiceError(ctx context.Context) {
	active, err := h.chats.ActiveChat()
	if err != nil {
		return
	}
	if _, err := h.chats.AddMessage(context.WithoutCancel(ctx), active.ID, chat.Message{
		Sender:  chat.SenderAI,
		Text:    "Sorry, I could not understand your voice.",
		IsError: true,
	}); err != nil {
		h.logger.Warn("recording voice error message", "error", err)
	}
}
