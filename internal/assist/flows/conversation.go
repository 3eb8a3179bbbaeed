package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/aetherhq/aether/internal/assist"
)

// textConfig builds the shared generation parameters for text flows.
func textConfig(cfg Config) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(cfg.Temperature)),
		MaxOutputTokens: int32(cfg.MaxTokens),
	}
}

// defineInterpretFlow reformulates a raw user query into a clear
// standalone intent, resolving pronouns against recent conversation
// context.
func defineInterpretFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.InterpretRequest, assist.InterpretResponse, struct{}] {
	return genkit.DefineFlow(g, "interpretQuery",
		func(ctx context.Context, input assist.InterpretRequest) (assist.InterpretResponse, error) {
			var sb strings.Builder
			sb.WriteString("You interpret user queries for a conversational assistant.\n")
			sb.WriteString("Rewrite the query as a clear, standalone intent. Resolve pronouns and\n")
			sb.WriteString("references using the conversation context. Decide whether answering\n")
			sb.WriteString("requires that context.\n\n")
			if input.Context != "" {
				sb.WriteString("Conversation context:\n")
				sb.WriteString(input.Context)
				sb.WriteString("\n\n")
			}
			sb.WriteString("Query: ")
			sb.WriteString(input.Query)

			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.Model),
				ai.WithConfig(textConfig(cfg)),
				ai.WithPrompt(sb.String()),
				ai.WithOutputType(assist.InterpretResponse{}),
			)
			if err != nil {
				return assist.InterpretResponse{}, err
			}

			var output assist.InterpretResponse
			if err := response.Output(&output); err != nil {
				return assist.InterpretResponse{}, err
			}
			if strings.TrimSpace(output.Intent) == "" {
				output.Intent = input.Query
			}
			return output, nil
		})
}

// defineRetrieveFlow surfaces short context snippets relevant to a
// query, for grounding the conversational reply.
func defineRetrieveFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.RetrieveRequest, assist.RetrieveResponse, struct{}] {
	return genkit.DefineFlow(g, "retrieveContext",
		func(ctx context.Context, input assist.RetrieveRequest) (assist.RetrieveResponse, error) {
			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.Model),
				ai.WithConfig(textConfig(cfg)),
				ai.WithPrompt(fmt.Sprintf(
					"List up to three short factual context snippets that would help answer "+
						"the following question. Return an empty list if none apply.\n\nQuestion: %s",
					input.QueryText)),
				ai.WithOutputType(assist.RetrieveResponse{}),
			)
			if err != nil {
				return assist.RetrieveResponse{}, err
			}

			var output assist.RetrieveResponse
			if err := response.Output(&output); err != nil {
				return assist.RetrieveResponse{}, err
			}
			return output, nil
		})
}

// defineGenerateFlow produces the conversational reply, seeded with
// recent assistant replies and any retrieved context.
func defineGenerateFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.GenerateRequest, assist.GenerateResponse, struct{}] {
	return genkit.DefineFlow(g, "generateResponse",
		func(ctx context.Context, input assist.GenerateRequest) (assist.GenerateResponse, error) {
			var sb strings.Builder
			sb.WriteString("You are Aether, a helpful conversational assistant. Answer the\n")
			sb.WriteString("user's question clearly and concisely.\n\n")
			if len(input.KnowledgeBase) > 0 {
				sb.WriteString("Your recent replies in this conversation:\n")
				for _, k := range input.KnowledgeBase {
					sb.WriteString("- ")
					sb.WriteString(k)
					sb.WriteString("\n")
				}
				sb.WriteString("\n")
			}
			if len(input.RetrievedContexts) > 0 {
				sb.WriteString("Relevant context:\n")
				for _, c := range input.RetrievedContexts {
					sb.WriteString("- ")
					sb.WriteString(c)
					sb.WriteString("\n")
				}
				sb.WriteString("\n")
			}
			if input.Language != "" {
				fmt.Fprintf(&sb, "Reply in %s.\n\n", input.Language)
			}
			sb.WriteString("Question: ")
			sb.WriteString(input.Query)

			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.Model),
				ai.WithConfig(textConfig(cfg)),
				ai.WithPrompt(sb.String()),
			)
			if err != nil {
				return assist.GenerateResponse{}, err
			}
			return assist.GenerateResponse{Response: response.Text()}, nil
		})
}
