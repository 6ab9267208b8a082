// Package tutor produces tutoring replies: it frames recent history around
// the student's utterance, asks the completion provider under a fixed
// decoding policy, and records successful exchanges.
package tutor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stupiduntilnot/ielts-tutor/internal/memory"
	"github.com/stupiduntilnot/ielts-tutor/internal/model"
)

// SentinelPrefix starts the reply returned when the completion call fails.
const SentinelPrefix = "ERROR: "

// Policy is the fixed decoding policy and persona.
type Policy struct {
	Persona      string
	Temperature  float32
	TopP         float32
	TopK         float32
	HistoryLimit int
}

// DefaultPolicy returns the tutoring defaults.
func DefaultPolicy() Policy {
	return Policy{
		Persona:      DefaultPersona,
		Temperature:  0.3,
		TopP:         0.9,
		TopK:         50,
		HistoryLimit: 5,
	}
}

// Result describes one reply.
type Result struct {
	// Text is the normalized reply, or the sentinel on completion failure.
	Text string
	// CompletionErr is the provider failure behind a sentinel reply.
	CompletionErr error
	// Recorded is zero when nothing was written to history.
	Recorded     memory.RecordResult
	InputTokens  int
	OutputTokens int
}

// Failed reports whether the reply is a completion-failure sentinel.
func (r Result) Failed() bool {
	return r.CompletionErr != nil
}

// Tutor is the chat client.
type Tutor struct {
	history   memory.History
	assembler memory.Assembler
	provider  model.Provider
	policy    Policy
	logger    *zap.Logger
}

// New creates a Tutor. A nil assembler uses memory.StandardAssembler.
func New(history memory.History, assembler memory.Assembler, provider model.Provider, policy Policy, logger *zap.Logger) *Tutor {
	if assembler == nil {
		assembler = &memory.StandardAssembler{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tutor{
		history:   history,
		assembler: assembler,
		provider:  provider,
		policy:    policy,
		logger:    logger,
	}
}

// Reply returns the tutor's answer to utterance. A completion failure is not
// an error: the reply is the "ERROR: ..." sentinel. Storage failures are
// returned as errors.
func (t *Tutor) Reply(ctx context.Context, utterance string) (string, error) {
	res, err := t.Respond(ctx, utterance)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Respond is Reply with the details of what happened.
func (t *Tutor) Respond(ctx context.Context, utterance string) (Result, error) {
	recent, err := t.history.Recent(ctx, t.policy.HistoryLimit)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	prompt := t.assembler.Assemble(recent, utterance)

	resp, err := t.provider.Generate(ctx, model.Request{
		System:           t.policy.Persona,
		Prompt:           prompt,
		Temperature:      t.policy.Temperature,
		TopP:             t.policy.TopP,
		TopK:             t.policy.TopK,
		ResponseMIMEType: "text/plain",
	})
	if err == nil {
		resp.Content = Normalize(resp.Content)
		if resp.Content == "" {
			err = model.ErrEmptyResponse
		}
	}
	if err != nil {
		t.logger.Warn("completion failed", zap.Error(err), zap.Int("history", len(recent)))
		return Result{Text: SentinelPrefix + Normalize(err.Error()), CompletionErr: err}, nil
	}

	recorded, err := t.history.Record(ctx, utterance, resp.Content)
	if err != nil {
		return Result{}, fmt.Errorf("record exchange: %w", err)
	}
	t.logger.Debug("reply generated",
		zap.Int("history", len(recent)),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Stringer("recorded", recorded),
	)

	return Result{
		Text:         resp.Content,
		Recorded:     recorded,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

// IsSentinel reports whether reply is a completion-failure sentinel.
func IsSentinel(reply string) bool {
	return strings.HasPrefix(reply, SentinelPrefix)
}
