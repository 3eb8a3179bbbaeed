package flows

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/aetherhq/aether/internal/assist"
)

// defineAnalyzeFlow produces a structured analysis (summary, key
// insights, confidence) of a piece of information.
func defineAnalyzeFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.AnalyzeRequest, assist.AnalyzeResponse, struct{}] {
	return genkit.DefineFlow(g, "analyzeInformation",
		func(ctx context.Context, input assist.AnalyzeRequest) (assist.AnalyzeResponse, error) {
			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.Model),
				ai.WithConfig(textConfig(cfg)),
				ai.WithPrompt(fmt.Sprintf(
					"Analyze the following information with respect to the user's request.\n"+
						"Produce a concise summary, the key insights as one readable paragraph,\n"+
						"and a confidence level between 0 and 1.\n\n"+
						"Request: %s\n\nInformation:\n%s",
					input.Query, input.Information)),
				ai.WithOutputType(assist.AnalyzeResponse{}),
			)
			if err != nil {
				return assist.AnalyzeResponse{}, err
			}

			var output assist.AnalyzeResponse
			if err := response.Output(&output); err != nil {
				return assist.AnalyzeResponse{}, err
			}
			return output, nil
		})
}

// defineProcessFileFlow answers a question about an attached file. The
// file travels inline as a data URI media part.
func defineProcessFileFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.ProcessFileRequest, assist.ProcessFileResponse, struct{}] {
	return genkit.DefineFlow(g, "processFile",
		func(ctx context.Context, input assist.ProcessFileRequest) (assist.ProcessFileResponse, error) {
			if input.FileDataURI == "" {
				return assist.ProcessFileResponse{}, fmt.Errorf("file data URI is empty")
			}

			query := input.Query
			if query == "" {
				query = "Describe the contents of this file."
			}

			userMessage := ai.NewUserMessage(
				ai.NewMediaPart("", input.FileDataURI),
				ai.NewTextPart(query),
			)

			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.Model),
				ai.WithConfig(textConfig(cfg)),
				ai.WithMessages(userMessage),
			)
			if err != nil {
				return assist.ProcessFileResponse{}, err
			}
			return assist.ProcessFileResponse{Answer: response.Text()}, nil
		})
}

// defineFeedbackFlow reports a user rating on an assistant reply.
// The model acknowledges the feedback; the structured request itself
// is what gets traced and logged for later review.
func defineFeedbackFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.FeedbackRequest, assist.FeedbackResponse, struct{}] {
	return genkit.DefineFlow(g, "processFeedback",
		func(ctx context.Context, input assist.FeedbackRequest) (assist.FeedbackResponse, error) {
			if input.MessageID == "" || input.FeedbackType == "" {
				return assist.FeedbackResponse{}, fmt.Errorf("message id and feedback type are required")
			}

			prompt := fmt.Sprintf(
				"A user rated an assistant reply as %q.\nReply: %s\n",
				input.FeedbackType, input.OriginalAIResponse)
			if input.CorrectionText != "" {
				prompt += fmt.Sprintf("Correction offered by the user: %s\n", input.CorrectionText)
			}
			if input.UserQueryContext != "" {
				prompt += fmt.Sprintf("The reply answered: %s\n", input.UserQueryContext)
			}
			prompt += "Acknowledge the feedback in one short sentence."

			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.Model),
				ai.WithConfig(textConfig(cfg)),
				ai.WithPrompt(prompt),
			)
			if err != nil {
				return assist.FeedbackResponse{}, err
			}
			return assist.FeedbackResponse{Status: "received", Message: response.Text()}, nil
		})
}
