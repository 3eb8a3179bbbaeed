// Package chat owns the conversation data model and its repository.
//
// The repository holds the in-memory collection of chats plus the
// active-chat pointer, and is the only component allowed to mutate
// them. Every mutation re-serializes the full collection to the
// session store best-effort: store failures are logged, never
// surfaced, and the repository keeps serving from memory.
package chat

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Feedback is a user rating recorded against an assistant message.
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// DefaultTitle is the title given to a chat before auto-naming.
const DefaultTitle = "New Chat"

// titleMaxRunes caps the auto-generated title prefix (excluding the
// trailing ellipsis).
const titleMaxRunes = 30

// FileAttachment is a file carried by a message, either selected by
// the user or synthesized from generated image bytes.
// Immutable once created.
type FileAttachment struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // MIME type
	Size    int64  `json:"size"` // bytes
	DataURI string `json:"dataUri"`
}

// AnalyzedInfo is the structured output of an information analysis,
// attached to assistant messages produced by the analysis branch.
type AnalyzedInfo struct {
	Summary         string  `json:"summary"`
	KeyInsights     string  `json:"keyInsights"`
	ConfidenceLevel float64 `json:"confidenceLevel"` // clamped to [0,1]
}

// Message is one entry in a chat's transcript.
//
// A message is created once and afterwards only updated in place,
// never deleted individually. IsLoading marks the in-flight assistant
// placeholder; every pipeline path eventually clears it.
type Message struct {
	ID              string          `json:"id"`
	Sender          Sender          `json:"sender"`
	Text            string          `json:"text,omitempty"`
	File            *FileAttachment `json:"file,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	IsLoading       bool            `json:"isLoading,omitempty"`
	IsError         bool            `json:"isError,omitempty"`
	AnalyzedInfo    *AnalyzedInfo   `json:"analyzedInfo,omitempty"`
	Intent          string          `json:"intent,omitempty"`
	RequiresContext bool            `json:"requiresContext,omitempty"`
	Feedback        Feedback        `json:"feedback,omitempty"`
	Correction      string          `json:"correction,omitempty"`
}

// Chat is one conversation: an append-only ordered message list plus
// its metadata. Owned exclusively by the Repository.
type Chat struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	Messages      []Message `json:"messages"`
}

// MessageUpdate carries a partial message mutation. Nil fields are
// left untouched; non-nil fields overwrite the stored value.
type MessageUpdate struct {
	Text            *string
	File            *FileAttachment
	IsLoading       *bool
	IsError         *bool
	AnalyzedInfo    *AnalyzedInfo
	Intent          *string
	RequiresContext *bool
	Feedback        *Feedback
	Correction      *string
}

// Ptr returns a pointer to v. Convenience for building MessageUpdate
// literals.
func Ptr[T any](v T) *T {
	return &v
}
