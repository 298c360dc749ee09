// Package tesseract runs page OCR through the Tesseract engine.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// dictionary correction settings applied to every client.
var correctionVariables = map[string]string{
	"load_system_dawg":                  "1",
	"load_freq_dawg":                    "1",
	"tessedit_enable_dict_correction":   "1",
	"tessedit_enable_bigram_correction": "1",
}

// Recognizer extracts the best single transcription of a page image.
type Recognizer struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New constructs a recognizer for the given Tesseract language codes (e.g. "eng").
func New(languages []string) *Recognizer {
	return &Recognizer{languages: languages, clientFactory: gosseract.NewClient}
}

type recognition struct {
	text string
	err  error
}

// Recognize returns the page text. The engine call cannot be interrupted, so on cancellation
// the result is abandoned and ctx.Err() returned immediately.
func (r *Recognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "", fmt.Errorf("empty page image")
	}

	done := make(chan recognition, 1)
	go func() {
		text, err := r.recognize(image)
		done <- recognition{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

func (r *Recognizer) recognize(image []byte) (string, error) {
	c := r.clientFactory()
	defer c.Close()

	if len(r.languages) > 0 {
		if err := c.SetLanguage(r.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("set page segmentation: %w", err)
	}
	for k, v := range correctionVariables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return "", fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
