// Package openai adapts the OpenAI API to the tutor's chat, transcription and
// speech synthesis contracts.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/stupiduntilnot/ielts-tutor/internal/model"
)

// SpeechSampleRate is the rate of the raw PCM returned by the speech endpoint.
const SpeechSampleRate = 24000

// Options configures a Client. Empty models fall back to the API defaults
// used by the tutor.
type Options struct {
	APIKey    string
	BaseURL   string
	ChatModel string
	STTModel  string
	TTSModel  string
	Voice     string
	Language  string
	Timeout   time.Duration
	BlockSize int
}

// Client is an OpenAI-backed chat provider, transcriber and synthesizer.
type Client struct {
	api       *openai.Client
	chatModel string
	sttModel  string
	ttsModel  string
	voice     string
	language  string
	blockSize int
}

// NewClient creates an OpenAI client.
func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	c := &Client{
		api:       openai.NewClientWithConfig(cfg),
		chatModel: opts.ChatModel,
		sttModel:  opts.STTModel,
		ttsModel:  opts.TTSModel,
		voice:     opts.Voice,
		language:  opts.Language,
		blockSize: opts.BlockSize,
	}
	if c.chatModel == "" {
		c.chatModel = openai.GPT4oMini
	}
	if c.sttModel == "" {
		c.sttModel = openai.Whisper1
	}
	if c.ttsModel == "" {
		c.ttsModel = string(openai.TTSModel1)
	}
	if c.voice == "" {
		c.voice = string(openai.VoiceAlloy)
	}
	if c.blockSize <= 0 {
		// 100 ms of 24 kHz mono PCM16.
		c.blockSize = SpeechSampleRate / 10 * 2
	}
	return c
}

// Generate sends the persona as a system message and the prompt as a single
// user message. The chat API has no top-k parameter; req.TopK is ignored.
func (c *Client) Generate(ctx context.Context, req model.Request) (model.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("openai chat completion: %w", err)
	}

	result := model.CompletionResponse{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return result, model.ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return result, model.ErrEmptyResponse
	}
	result.Content = content
	return result, nil
}
