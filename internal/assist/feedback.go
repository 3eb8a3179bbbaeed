package assist

import (
	"context"
	"fmt"
	"sync"

	"github.com/aetherhq/aether/internal/chat"
)

// RecordFeedback applies a thumbs up/down rating (optionally with a
// correction) to an assistant message optimistically, then reports it
// to the backend. A backend failure rolls the message back to its
// exact prior feedback state.
//
// Ratings on different messages may proceed concurrently; ratings on
// the same message are serialized.
func (h *Handler) RecordFeedback(ctx context.Context, chatID, messageID string, kind chat.Feedback, correction string) error {
	msg, err := h.chats.Message(chatID, messageID)
	if err != nil {
		return err
	}
	if msg.Sender != chat.SenderAI {
		return ErrNotAssistantMessage
	}

	lock := h.feedbackLock(messageID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent rating may have landed.
	msg, err = h.chats.Message(chatID, messageID)
	if err != nil {
		return err
	}
	prevFeedback := msg.Feedback
	prevCorrection := msg.Correction

	persistCtx := context.WithoutCancel(ctx)
	if err := h.chats.UpdateMessage(persistCtx, chatID, messageID, chat.MessageUpdate{
		Feedback:   chat.Ptr(kind),
		Correction: chat.Ptr(correction),
	}); err != nil {
		return fmt.Errorf("applying feedback: %w", err)
	}

	resp, err := h.svc.ProcessFeedback(ctx, FeedbackRequest{
		MessageID:          messageID,
		ChatID:             chatID,
		FeedbackType:       string(kind),
		CorrectionText:     correction,
		OriginalAIResponse: msg.Text,
		UserQueryContext:   h.precedingUserText(chatID, messageID),
	})
	if err != nil {
		if rbErr := h.chats.UpdateMessage(persistCtx, chatID, messageID, chat.MessageUpdate{
			Feedback:   chat.Ptr(prevFeedback),
			Correction: chat.Ptr(prevCorrection),
		}); rbErr != nil {
			h.logger.Warn("rolling back feedback", "error", rbErr)
		}
		h.notifier.Notify(Notification{Level: LevelError, Title: "Feedback Error", Message: "Could not submit your feedback."})
		return fmt.Errorf("processing feedback: %w", err)
	}

	h.logger.Debug("feedback recorded", "message_id", messageID, "status", resp.Status)
	if resp.Message != "" {
		h.notifier.Notify(Notification{Level: LevelInfo, Title: "Feedback", Message: resp.Message})
	}
	return nil
}

// feedbackLock returns the per-message mutex, creating it on first use.
func (h *Handler) feedbackLock(messageID string) *sync.Mutex {
	h.feedbackMu.Lock()
	defer h.feedbackMu.Unlock()
	lock, ok := h.feedbackLocks[messageID]
	if !ok {
		lock = &sync.Mutex{}
		h.feedbackLocks[messageID] = lock
	}
	return lock
}

// precedingUserText finds the user message immediately before the
// given assistant message, for feedback context.
func (h *Handler) precedingUserText(chatID, messageID string) string {
	c, err := h.chats.Chat(chatID)
	if err != nil {
		return ""
	}
	idx := -1
	for i, m := range c.Messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if c.Messages[i].Sender == chat.SenderUser {
			return c.Messages[i].Text
		}
	}
	return ""
}
