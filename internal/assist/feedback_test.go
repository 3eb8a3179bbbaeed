package assist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aetherhq/aether/internal/chat"
)

// seedTurn plants one user/assistant exchange and returns the ids.
func seedTurn(t *testing.T, env *testEnv, question, answer string) (chatID, userID, aiID string) {
	t.Helper()
	ctx := context.Background()
	chatID = env.chats.ActiveChatID()

	userID, err := env.chats.AddMessage(ctx, chatID, chat.Message{Sender: chat.SenderUser, Text: question})
	if err != nil {
		t.Fatal(err)
	}
	aiID, err = env.chats.AddMessage(ctx, chatID, chat.Message{Sender: chat.SenderAI, Text: answer})
	if err != nil {
		t.Fatal(err)
	}
	return chatID, userID, aiID
}

func TestRecordFeedback(t *testing.T) {
	t.Run("rejects user messages", func(t *testing.T) {
		env := newTestEnv(t, nil)
		chatID, userID, _ := seedTurn(t, env, "question", "answer")

		err := env.handler.RecordFeedback(context.Background(), chatID, userID, chat.FeedbackPositive, "")
		if !errors.Is(err, ErrNotAssistantMessage) {
			t.Fatalf("RecordFeedback() error = %v, want ErrNotAssistantMessage", err)
		}
	})

	t.Run("unknown message", func(t *testing.T) {
		env := newTestEnv(t, nil)
		chatID, _, _ := seedTurn(t, env, "question", "answer")

		if err := env.handler.RecordFeedback(context.Background(), chatID, "missing", chat.FeedbackPositive, ""); err == nil {
			t.Fatal("RecordFeedback() error = nil, want lookup failure")
		}
	})

	t.Run("applies and reports", func(t *testing.T) {
		env := newTestEnv(t, nil)
		chatID, _, aiID := seedTurn(t, env, "what is go", "Go is a language.")

		var captured FeedbackRequest
		env.svc.FeedbackFunc = func(_ context.Context, req FeedbackRequest) (FeedbackResponse, error) {
			captured = req
			return FeedbackResponse{Status: "received"}, nil
		}

		err := env.handler.RecordFeedback(context.Background(), chatID, aiID, chat.FeedbackNegative, "too terse")
		if err != nil {
			t.Fatalf("RecordFeedback() error = %v", err)
		}

		msg, _ := env.chats.Message(chatID, aiID)
		if msg.Feedback != chat.FeedbackNegative || msg.Correction != "too terse" {
			t.Errorf("message feedback = %q correction = %q", msg.Feedback, msg.Correction)
		}

		if captured.MessageID != aiID || captured.ChatID != chatID {
			t.Errorf("FeedbackRequest ids = %q/%q", captured.MessageID, captured.ChatID)
		}
		if captured.FeedbackType != "negative" || captured.CorrectionText != "too terse" {
			t.Errorf("FeedbackRequest = %+v", captured)
		}
		if captured.OriginalAIResponse != "Go is a language." {
			t.Errorf("OriginalAIResponse = %q", captured.OriginalAIResponse)
		}
		if captured.UserQueryContext != "what is go" {
			t.Errorf("UserQueryContext = %q, want preceding user text", captured.UserQueryContext)
		}
	})

	t.Run("rolls back on backend failure", func(t *testing.T) {
		env := newTestEnv(t, nil)
		chatID, _, aiID := seedTurn(t, env, "question", "answer")

		// Establish a prior rating to roll back to.
		if err := env.handler.RecordFeedback(context.Background(), chatID, aiID, chat.FeedbackPositive, "nice"); err != nil {
			t.Fatal(err)
		}

		env.svc.FeedbackFunc = func(context.Context, FeedbackRequest) (FeedbackResponse, error) {
			return FeedbackResponse{}, errors.New("backend down")
		}

		err := env.handler.RecordFeedback(context.Background(), chatID, aiID, chat.FeedbackNegative, "changed my mind")
		if err == nil {
			t.Fatal("RecordFeedback() error = nil, want backend failure")
		}

		msg, _ := env.chats.Message(chatID, aiID)
		if msg.Feedback != chat.FeedbackPositive || msg.Correction != "nice" {
			t.Errorf("after rollback feedback = %q correction = %q, want prior state restored", msg.Feedback, msg.Correction)
		}

		notes := env.notifier.All()
		if len(notes) == 0 || notes[len(notes)-1].Title != "Feedback Error" {
			t.Errorf("notifications = %+v, want trailing feedback error", notes)
		}
	})

	t.Run("concurrent ratings on distinct messages", func(t *testing.T) {
		env := newTestEnv(t, nil)
		chatID := env.chats.ActiveChatID()
		ctx := context.Background()

		var ids []string
		for i := 0; i < 4; i++ {
			id, err := env.chats.AddMessage(ctx, chatID, chat.Message{Sender: chat.SenderAI, Text: "answer"})
			if err != nil {
				t.Fatal(err)
			}
			ids = append(ids, id)
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if err := env.handler.RecordFeedback(ctx, chatID, id, chat.FeedbackPositive, ""); err != nil {
					t.Errorf("RecordFeedback(%s) error = %v", id, err)
				}
			}(id)
		}
		wg.Wait()

		for _, id := range ids {
			msg, _ := env.chats.Message(chatID, id)
			if msg.Feedback != chat.FeedbackPositive {
				t.Errorf("message %s feedback = %q", id, msg.Feedback)
			}
		}
	})
}
