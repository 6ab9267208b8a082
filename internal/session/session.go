// Package session runs the voice turn loop: once the speaker pauses, the
// utterance is transcribed, answered by the tutor and spoken back as a
// stream of audio chunks.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stupiduntilnot/ielts-tutor/internal/db"
	"github.com/stupiduntilnot/ielts-tutor/internal/metrics"
	"github.com/stupiduntilnot/ielts-tutor/internal/speech"
	"github.com/stupiduntilnot/ielts-tutor/internal/tutor"
)

// Sink receives everything a turn produces for the client.
type Sink interface {
	SendTranscript(text string) error
	SendReply(text string) error
	SendAudio(chunk speech.Chunk) error
}

// Replier answers one transcribed utterance.
type Replier interface {
	Respond(ctx context.Context, utterance string) (tutor.Result, error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Transcriber speech.Transcriber
	Tutor       Replier
	Synthesizer speech.Synthesizer
	// DB receives the turn event tree; nil disables event logging.
	DB      *sql.DB
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Loop handles the turns of one client session. Respond must not be called
// concurrently.
type Loop struct {
	deps    Deps
	id      string
	eventID *int64
	turns   int
	logger  *zap.Logger
}

// NewLoop opens a session and logs its root event.
func NewLoop(deps Deps, remote string) *Loop {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	l := &Loop{
		deps: deps,
		id:   uuid.NewString(),
	}
	l.logger = deps.Logger.With(zap.String("session_id", l.id))
	if id, ok := l.event(nil, db.EventSessionStarted, map[string]any{
		"session_id": l.id,
		"remote":     remote,
	}); ok {
		l.eventID = &id
	}
	deps.Metrics.SessionOpened()
	l.logger.Info("session started", zap.String("remote", remote))
	return l
}

// ID returns the session id.
func (l *Loop) ID() string {
	return l.id
}

// Close logs the end of the session.
func (l *Loop) Close() {
	l.event(l.eventID, db.EventSessionEnded, map[string]any{"turns": l.turns})
	l.deps.Metrics.SessionClosed()
	l.logger.Info("session ended", zap.Int("turns", l.turns))
}

// Respond runs one turn for a completed utterance. A completion failure is
// not an error: the sentinel reply is spoken like any other. Transcription,
// storage, synthesis and sink failures end the turn with an error.
func (l *Loop) Respond(ctx context.Context, utterance speech.Utterance, sink Sink) error {
	l.turns++
	turn := l.turns
	turnID, _ := l.event(l.eventID, db.EventTurnStarted, map[string]any{
		"turn":     turn,
		"audio_ms": utterance.Duration().Milliseconds(),
	})
	logger := l.logger.With(zap.Int("turn", turn))

	start := time.Now()
	transcript, err := l.deps.Transcriber.Transcribe(ctx, utterance)
	l.deps.Metrics.ObserveStage(metrics.StageTranscribe, time.Since(start))
	if err != nil {
		return l.fail(turnID, logger, "transcribe", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		l.event(&turnID, db.EventTurnSkipped, map[string]any{"reason": "empty_transcript"})
		l.deps.Metrics.RecordTurn(metrics.OutcomeSkipped)
		logger.Debug("empty transcript, turn skipped")
		return nil
	}
	l.event(&turnID, db.EventTranscriptReceived, map[string]any{"text": transcript})
	logger.Info("transcript", zap.String("text", transcript))
	if err := sink.SendTranscript(transcript); err != nil {
		return l.fail(turnID, logger, "send_transcript", err)
	}

	start = time.Now()
	res, err := l.deps.Tutor.Respond(ctx, transcript)
	l.deps.Metrics.ObserveStage(metrics.StageReply, time.Since(start))
	if err != nil {
		return l.fail(turnID, logger, "reply", err)
	}
	if res.Failed() {
		l.deps.Metrics.RecordCompletionFailure()
		l.event(&turnID, db.EventCompletionFailed, map[string]any{"error": res.CompletionErr.Error()})
	} else {
		l.event(&turnID, db.EventReplyGenerated, map[string]any{
			"text":          res.Text,
			"input_tokens":  res.InputTokens,
			"output_tokens": res.OutputTokens,
		})
		l.deps.Metrics.RecordExchange(res.Recorded.String())
		l.event(&turnID, db.EventExchangeRecorded, map[string]any{"result": res.Recorded.String()})
	}
	logger.Info("reply", zap.String("text", res.Text), zap.Bool("sentinel", res.Failed()))
	if err := sink.SendReply(res.Text); err != nil {
		return l.fail(turnID, logger, "send_reply", err)
	}

	start = time.Now()
	chunks, size, err := l.speak(ctx, res.Text, sink)
	l.deps.Metrics.ObserveStage(metrics.StageSynthesize, time.Since(start))
	if err != nil {
		return l.fail(turnID, logger, "synthesize", err)
	}
	l.event(&turnID, db.EventSpeechCompleted, map[string]any{"chunks": chunks, "bytes": size})

	l.event(&turnID, db.EventTurnCompleted, nil)
	l.deps.Metrics.RecordTurn(metrics.OutcomeCompleted)
	return nil
}

// speak forwards each synthesized chunk to the sink as it arrives.
func (l *Loop) speak(ctx context.Context, text string, sink Sink) (int, int, error) {
	stream, err := l.deps.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		return 0, 0, err
	}
	defer stream.Close()

	chunks, size := 0, 0
	for chunk := range stream.Chunks() {
		if err := sink.SendAudio(chunk); err != nil {
			return chunks, size, fmt.Errorf("send audio: %w", err)
		}
		chunks++
		size += len(chunk.PCM)
	}
	if err := stream.Err(); err != nil {
		return chunks, size, err
	}
	return chunks, size, nil
}

func (l *Loop) fail(turnID int64, logger *zap.Logger, stage string, err error) error {
	l.event(&turnID, db.EventTurnFailed, map[string]any{"stage": stage, "error": err.Error()})
	l.deps.Metrics.RecordTurn(metrics.OutcomeFailed)
	logger.Error("turn failed", zap.String("stage", stage), zap.Error(err))
	return fmt.Errorf("%s: %w", stage, err)
}

func (l *Loop) event(parentID *int64, eventType string, payload map[string]any) (int64, bool) {
	if l.deps.DB == nil {
		return 0, false
	}
	id, err := db.LogEvent(l.deps.DB, parentID, eventType, payload)
	if err != nil {
		l.logger.Warn("log event failed", zap.String("event_type", eventType), zap.Error(err))
		return 0, false
	}
	return id, true
}
