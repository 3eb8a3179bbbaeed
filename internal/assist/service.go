// Package assist implements the message orchestrator: the per-turn
// state machine that sequences AI calls, updates the in-flight
// assistant message, and handles cancellation, regeneration, voice
// capture and feedback.
//
// The AI boundary is the Service interface below, one method per
// capability. The production implementation lives in assist/flows;
// tests substitute a ServiceStub.
package assist

import "context"

// Service is the AI capability boundary. Every method is one
// request/response round trip against a remote model; all dataUri
// fields follow data:<mimetype>;base64,<payload>.
//
// Interface defined here, by the consumer, so the orchestrator can be
// tested without any model backend.
type Service interface {
	// InterpretQuery classifies a user query into an actionable intent.
	InterpretQuery(ctx context.Context, req InterpretRequest) (InterpretResponse, error)

	// RetrieveContext returns query-matched snippets from the
	// conversation's source material.
	RetrieveContext(ctx context.Context, req RetrieveRequest) (RetrieveResponse, error)

	// GenerateResponse produces the conversational reply.
	GenerateResponse(ctx context.Context, req GenerateRequest) (GenerateResponse, error)

	// AnalyzeInformation produces a structured analysis of a body of text.
	AnalyzeInformation(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error)

	// ProcessFile answers a query about an attached file.
	ProcessFile(ctx context.Context, req ProcessFileRequest) (ProcessFileResponse, error)

	// TranscribeAudio converts a recorded audio clip to text.
	TranscribeAudio(ctx context.Context, req TranscribeRequest) (TranscribeResponse, error)

	// SynthesizeSpeech renders text as spoken audio.
	SynthesizeSpeech(ctx context.Context, req SynthesizeRequest) (SynthesizeResponse, error)

	// GenerateImage renders an image from a prompt.
	GenerateImage(ctx context.Context, req GenerateImageRequest) (GenerateImageResponse, error)

	// ProcessFeedback records a user rating or correction of a reply.
	ProcessFeedback(ctx context.Context, req FeedbackRequest) (FeedbackResponse, error)
}

// InterpretRequest carries the raw query plus recent conversation
// serialized one message per line ("sender: text").
type InterpretRequest struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
}

type InterpretResponse struct {
	Intent          string `json:"intent"`
	RelevantContext string `json:"relevantContext,omitempty"`
	RequiresContext bool   `json:"requiresContext"`
}

type RetrieveRequest struct {
	QueryText string `json:"queryText"`
}

type RetrieveResponse struct {
	RelevantContexts []string `json:"relevantContexts"`
}

// GenerateRequest carries the interpreted intent plus two kinds of
// auxiliary context: KnowledgeBase (recent assistant replies from this
// chat) and RetrievedContexts (query-matched snippets).
type GenerateRequest struct {
	Query             string   `json:"query"`
	KnowledgeBase     []string `json:"knowledgeBase,omitempty"`
	RetrievedContexts []string `json:"retrievedContexts,omitempty"`
	Language          string   `json:"language,omitempty"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

type AnalyzeRequest struct {
	Information string `json:"information"`
	Query       string `json:"query"`
}

// AnalyzeResponse carries a structured analysis. ConfidenceLevel is
// clamped to [0,1] by the service implementation.
type AnalyzeResponse struct {
	Summary         string  `json:"summary"`
	KeyInsights     string  `json:"keyInsights"`
	ConfidenceLevel float64 `json:"confidenceLevel"`
}

type ProcessFileRequest struct {
	FileDataURI string `json:"fileDataUri"`
	Query       string `json:"query"`
}

type ProcessFileResponse struct {
	Answer string `json:"answer"`
}

type TranscribeRequest struct {
	AudioDataURI string `json:"audioDataUri"`
	LanguageHint string `json:"languageHint,omitempty"`
}

type TranscribeResponse struct {
	TranscribedText string `json:"transcribedText"`
}

type SynthesizeRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type SynthesizeResponse struct {
	AudioDataURI string `json:"audioDataUri"`
}

type GenerateImageRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateImageResponse struct {
	ImageDataURI  string `json:"imageDataUri"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

type FeedbackRequest struct {
	MessageID          string `json:"messageId"`
	ChatID             string `json:"chatId"`
	FeedbackType       string `json:"feedbackType"` // "positive" or "negative"
	CorrectionText     string `json:"correctionText,omitempty"`
	OriginalAIResponse string `json:"originalAiResponse,omitempty"`
	UserQueryContext   string `json:"userQueryContext,omitempty"`
}

type FeedbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
