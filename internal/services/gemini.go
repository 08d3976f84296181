package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/medinfo-ai/medinfo/internal/models"
)

// GeminiInvoker talks to Gemini through its OpenAI-compatible endpoint.
// It holds no credential; each call brings its own.
type GeminiInvoker struct {
	BaseURL     string
	Temperature float32
	HTTPClient  *http.Client
}

// NewGeminiInvoker creates an invoker for the given OpenAI-compatible base URL.
func NewGeminiInvoker(baseURL string, temperature float32) *GeminiInvoker {
	return &GeminiInvoker{
		BaseURL:     baseURL,
		Temperature: temperature,
		HTTPClient:  &http.Client{},
	}
}

// Invoke sends req to the model and returns the raw reply text.
func (g *GeminiInvoker) Invoke(ctx context.Context, cred models.Credential, req models.AnalysisRequest) (string, error) {
	if cred.IsZero() {
		return "", models.WrapError(models.KindCredential, "invoke", "missing API key", models.ErrMissingCredential)
	}

	clientConfig := openai.DefaultConfig(strings.TrimSpace(cred.APIKey))
	clientConfig.BaseURL = g.BaseURL
	if g.HTTPClient != nil {
		clientConfig.HTTPClient = g.HTTPClient
	}
	client := openai.NewClientWithConfig(clientConfig)

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: g.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: toMessageParts(req.Parts),
			},
		},
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyInvokeError(err)
	}

	if len(resp.Choices) == 0 {
		return "", models.NewError(models.KindMalformedReply, "invoke", "no response choices from model")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", models.NewError(models.KindMalformedReply, "invoke", "model returned an empty reply")
	}
	return content, nil
}

func toMessageParts(parts []models.Part) []openai.ChatMessagePart {
	out := make([]openai.ChatMessagePart, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case models.PartText:
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		case models.PartImage:
			if p.Image == nil {
				continue
			}
			out = append(out, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    p.Image.DataURL(),
					Detail: openai.ImageURLDetailHigh,
				},
			})
		}
	}
	return out
}

// classifyInvokeError separates rejected credentials from everything else.
func classifyInvokeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return models.WrapError(models.KindCredential, "invoke", "API key was rejected", err)
		}
		return models.WrapError(models.KindNetwork, "invoke", "model service returned an error", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden {
			return models.WrapError(models.KindCredential, "invoke", "API key was rejected", err)
		}
	}

	return models.WrapError(models.KindNetwork, "invoke", "failed to call model service", err)
}
