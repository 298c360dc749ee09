// Package vertex summarizes document text with a Gemini model on Vertex AI.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const systemPrompt = "You summarize scanned documents. The text comes from OCR and may contain recognition errors, broken lines and page artifacts. Write a faithful plain-text summary of what the document says. Never invent facts."

const userPrompt = `Summarize the following document in about %d words.
Return only the summary text, without a heading or preamble.`

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no text")

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Summarizer calls a configured Gemini model.
type Summarizer struct {
	model  generator
	client *genai.Client
}

// New creates a Vertex AI client for projectID/region and configures modelName.
func New(ctx context.Context, projectID, region, modelName string) (*Summarizer, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex summarizer: project and region are required")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.SetTemperature(0.2)

	return &Summarizer{model: model, client: client}, nil
}

// Summarize asks the model for a summary of roughly targetWords words.
func (s *Summarizer) Summarize(ctx context.Context, text string, targetWords int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text to summarize")
	}
	if targetWords <= 0 {
		targetWords = 150
	}
	resp, err := s.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(userPrompt, targetWords)), genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return responseText(resp)
}

// Close releases the underlying client.
func (s *Summarizer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
