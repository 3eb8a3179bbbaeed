// Package flows defines the Genkit flows behind the assistant surface
// and a resilient client that exposes them as assist.Service.
//
// Flows are stateless; all conversation state is passed in via input.
// Each flow category lives in its own file.
package flows

import (
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/aetherhq/aether/internal/assist"
)

// Config carries the model references and generation parameters shared
// by all flows. Model names are fully qualified (provider/model).
type Config struct {
	Model       string
	ImageModel  string
	SpeechModel string
	Temperature float64
	MaxTokens   int
}

// Flows holds the registered flow handles.
type Flows struct {
	Interpret  *core.Flow[assist.InterpretRequest, assist.InterpretResponse, struct{}]
	Retrieve   *core.Flow[assist.RetrieveRequest, assist.RetrieveResponse, struct{}]
	Generate   *core.Flow[assist.GenerateRequest, assist.GenerateResponse, struct{}]
	Analyze    *core.Flow[assist.AnalyzeRequest, assist.AnalyzeResponse, struct{}]
	File       *core.Flow[assist.ProcessFileRequest, assist.ProcessFileResponse, struct{}]
	Transcribe *core.Flow[assist.TranscribeRequest, assist.TranscribeResponse, struct{}]
	Speech     *core.Flow[assist.SynthesizeRequest, assist.SynthesizeResponse, struct{}]
	Image      *core.Flow[assist.GenerateImageRequest, assist.GenerateImageResponse, struct{}]
	Feedback   *core.Flow[assist.FeedbackRequest, assist.FeedbackResponse, struct{}]
}

// Define registers every flow on g and returns their handles.
func Define(g *genkit.Genkit, cfg Config) *Flows {
	return &Flows{
		Interpret:  defineInterpretFlow(g, cfg),
		Retrieve:   defineRetrieveFlow(g, cfg),
		Generate:   defineGenerateFlow(g, cfg),
		Analyze:    defineAnalyzeFlow(g, cfg),
		File:       defineProcessFileFlow(g, cfg),
		Transcribe: defineTranscribeFlow(g, cfg),
		Speech:     defineSpeechFlow(g, cfg),
		Image:      defineImageFlow(g, cfg),
		Feedback:   defineFeedbackFlow(g, cfg),
	}
}
