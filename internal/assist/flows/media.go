package flows

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/aetherhq/aether/internal/assist"
)

const ttsVoice = "Algenib"

// defineImageFlow renders an image for a prompt. The prompt is wrapped
// in a realism instruction so short prompts still produce
// photographic-quality output.
func defineImageFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.GenerateImageRequest, assist.GenerateImageResponse, struct{}] {
	return genkit.DefineFlow(g, "generateImage",
		func(ctx context.Context, input assist.GenerateImageRequest) (assist.GenerateImageResponse, error) {
			if strings.TrimSpace(input.Prompt) == "" {
				return assist.GenerateImageResponse{}, fmt.Errorf("image prompt is empty")
			}

			prompt := fmt.Sprintf(
				"Generate a highly realistic, photographic quality image of: %s. "+
					"Style: photorealistic, natural lighting, high detail.",
				input.Prompt)

			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.ImageModel),
				ai.WithConfig(&genai.GenerateContentConfig{
					ResponseModalities: []string{"TEXT", "IMAGE"},
				}),
				ai.WithPrompt(prompt),
			)
			if err != nil {
				return assist.GenerateImageResponse{}, err
			}

			media := firstMediaPart(response)
			if media == "" {
				return assist.GenerateImageResponse{}, fmt.Errorf("model returned no image data")
			}

			revised := strings.TrimSpace(response.Text())
			if revised == "" {
				revised = "Generated image for: " + input.Prompt
			}

			return assist.GenerateImageResponse{
				ImageDataURI:  media,
				RevisedPrompt: revised,
			}, nil
		})
}

// defineTranscribeFlow converts recorded audio into text.
func defineTranscribeFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.TranscribeRequest, assist.TranscribeResponse, struct{}] {
	return genkit.DefineFlow(g, "transcribeAudio",
		func(ctx context.Context, input assist.TranscribeRequest) (assist.TranscribeResponse, error) {
			if input.AudioDataURI == "" {
				return assist.TranscribeResponse{}, fmt.Errorf("audio data URI is empty")
			}

			prompt := "Transcribe this audio recording verbatim. Return only the spoken words."
			if input.LanguageHint != "" {
				prompt = fmt.Sprintf("Transcribe this audio recording verbatim; the speaker uses %s. Return only the spoken words.", input.LanguageHint)
			}

			userMessage := ai.NewUserMessage(
				ai.NewMediaPart("", input.AudioDataURI),
				ai.NewTextPart(prompt),
			)

			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.Model),
				ai.WithMessages(userMessage),
			)
			if err != nil {
				return assist.TranscribeResponse{}, err
			}
			return assist.TranscribeResponse{TranscribedText: strings.TrimSpace(response.Text())}, nil
		})
}

// defineSpeechFlow synthesizes spoken audio for a reply. The TTS model
// returns raw 16-bit PCM at 24kHz, which is wrapped into a playable
// WAV data URI.
func defineSpeechFlow(g *genkit.Genkit, cfg Config) *core.Flow[assist.SynthesizeRequest, assist.SynthesizeResponse, struct{}] {
	return genkit.DefineFlow(g, "generateSpeech",
		func(ctx context.Context, input assist.SynthesizeRequest) (assist.SynthesizeResponse, error) {
			if strings.TrimSpace(input.Text) == "" {
				return assist.SynthesizeResponse{}, fmt.Errorf("speech text is empty")
			}

			speechCfg := &genai.GenerateContentConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &genai.SpeechConfig{
					VoiceConfig: &genai.VoiceConfig{
						PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: ttsVoice},
					},
				},
			}
			if input.LanguageCode != "" {
				speechCfg.SpeechConfig.LanguageCode = input.LanguageCode
			}

			response, err := genkit.Generate(ctx, g,
				ai.WithModelName(cfg.SpeechModel),
				ai.WithConfig(speechCfg),
				ai.WithPrompt(input.Text),
			)
			if err != nil {
				return assist.SynthesizeResponse{}, err
			}

			media := firstMediaPart(response)
			if media == "" {
				return assist.SynthesizeResponse{}, fmt.Errorf("model returned no audio data")
			}

			wavURI, err := pcmDataURIToWav(media)
			if err != nil {
				return assist.SynthesizeResponse{}, fmt.Errorf("converting audio: %w", err)
			}
			return assist.SynthesizeResponse{AudioDataURI: wavURI}, nil
		})
}

// firstMediaPart returns the first media part's data URI, or "".
func firstMediaPart(response *ai.ModelResponse) string {
	if response == nil || response.Message == nil {
		return ""
	}
	for _, part := range response.Message.Content {
		if part.IsMedia() && part.Text != "" {
			return part.Text
		}
	}
	return ""
}

// pcmDataURIToWav wraps raw 16-bit mono PCM (24kHz) in a WAV container
// and returns it as a data URI. Already-containerized audio passes
// through unchanged.
func pcmDataURIToWav(dataURI string) (string, error) {
	if strings.HasPrefix(dataURI, "data:audio/wav") {
		return dataURI, nil
	}

	idx := strings.Index(dataURI, ",")
	if idx < 0 {
		return "", fmt.Errorf("malformed data URI")
	}
	pcm, err := base64.StdEncoding.DecodeString(dataURI[idx+1:])
	if err != nil {
		return "", fmt.Errorf("decoding audio payload: %w", err)
	}

	wav := pcmToWav(pcm, 24000, 1, 16)
	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav), nil
}

// pcmToWav prepends a RIFF/WAVE header to raw PCM samples.
func pcmToWav(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}
