package vertex

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	parts []genai.Part
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func candidate(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}}}
}

func TestSummarizeSendsTargetAndText(t *testing.T) {
	model := &fakeModel{resp: candidate(genai.Text("  A lease "), genai.Text("for one year. "))}
	s := &Summarizer{model: model}

	out, err := s.Summarize(context.Background(), "page one\npage two", 80)
	require.NoError(t, err)
	assert.Equal(t, "A lease for one year.", out)
	require.Len(t, model.parts, 2)
	assert.Contains(t, string(model.parts[0].(genai.Text)), "about 80 words")
	assert.Equal(t, genai.Text("page one\npage two"), model.parts[1])
}

func TestSummarizeSurfacesModelError(t *testing.T) {
	s := &Summarizer{model: &fakeModel{err: errors.New("quota")}}
	_, err := s.Summarize(context.Background(), "text", 50)
	assert.ErrorContains(t, err, "quota")
}

func TestSummarizeRejectsBlankText(t *testing.T) {
	s := &Summarizer{model: &fakeModel{}}
	_, err := s.Summarize(context.Background(), " \n ", 50)
	assert.Error(t, err)
}

func TestResponseTextEmpty(t *testing.T) {
	_, err := responseText(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	_, err = responseText(candidate(genai.Blob{MIMEType: "image/png"}))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewRequiresProject(t *testing.T) {
	_, err := New(context.Background(), "", "us-central1", "gemini-1.5-flash")
	assert.Error(t, err)
}
