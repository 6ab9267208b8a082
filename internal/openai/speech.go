package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/stupiduntilnot/ielts-tutor/internal/speech"
)

// Synthesize requests raw PCM and streams the response body in fixed-size
// blocks as it arrives.
func (c *Client) Synthesize(ctx context.Context, text string) (*speech.Stream, error) {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	return speech.StreamPCM(resp, c.blockSize, SpeechSampleRate, 1), nil
}
