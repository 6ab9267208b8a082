package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/stupiduntilnot/ielts-tutor/internal/speech"
)

// Transcribe uploads the utterance as WAV to the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, utterance speech.Utterance) (string, error) {
	wav, err := utterance.WAV()
	if err != nil {
		return "", fmt.Errorf("encode utterance: %w", err)
	}
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.sttModel,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
		Language: c.language,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
