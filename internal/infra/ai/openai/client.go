package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/carclabs/credit-funnel/internal/domain/analysis"
	"github.com/carclabs/credit-funnel/internal/infra/ai/prompt"
)

const maxTokens = 8192

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// Analyze submits every uploaded report in one multimodal request and returns
// the model's raw text payload. Each file is base64-encoded into a data URL
// part followed by a text label naming its bureau. One attempt, no retry.
func (c *Client) Analyze(ctx context.Context, reports []domain.Report) (string, error) {
	model := c.Model
	if model == "" {
		model = "gpt-4o-2024-08-06"
	}

	bureaus := make([]string, 0, len(reports))
	for _, rep := range reports {
		bureaus = append(bureaus, rep.Bureau.Label())
	}

	parts := make([]openai.ChatMessagePart, 0, 2*len(reports)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt.GetUserPrompt(bureaus),
	})
	for _, rep := range reports {
		encoded := base64.StdEncoding.EncodeToString(rep.Data)
		parts = append(parts,
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:application/pdf;base64," + encoded,
				},
			},
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: prompt.GetFileLabel(rep.Bureau.Label()),
			},
		)
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", domain.ErrUpstream)
	}

	return resp.Choices[0].Message.Content, nil
}

// classify folds the provider error into the domain taxonomy. The raw error
// (which may carry the upstream body) is logged here and goes no further.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		log.Printf("ai provider error: status=%d type=%s: %v", apiErr.HTTPStatusCode, apiErr.Type, err)
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return domain.ErrQuotaExceeded
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.ErrAccessDenied
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
			return domain.ErrBadInput
		}
		return domain.ErrUpstream
	}
	log.Printf("ai provider error: %v", err)
	return domain.ErrUpstream
}
