package dummy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stupiduntilnot/ielts-tutor/internal/speech"
)

// Transcriber is a scripted speech.Transcriber.
type Transcriber struct {
	mu     sync.Mutex
	script *scriptRunner
	calls  int
}

func NewTranscriber(script string) (*Transcriber, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Transcriber{script: runner}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, utterance speech.Utterance) (string, error) {
	t.mu.Lock()
	t.calls++
	a := t.script.next()
	t.mu.Unlock()

	switch a.kind {
	case "err":
		return "", fmt.Errorf("dummy transcriber error class=%s", emptyAs(a.arg, "stt_api"))
	case "sleep":
		if err := sleep(ctx, a.arg); err != nil {
			return "", err
		}
	}
	return text(a, "dummy transcript")
}

// Calls reports how many utterances were transcribed.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// SynthSampleRate is the rate of the silence the Synthesizer emits.
const SynthSampleRate = 16000

// 20 ms of 16 kHz mono PCM16.
const silenceChunkBytes = 640

// Synthesizer is a scripted speech.Synthesizer. "ok" emits one chunk of
// silence per word; msg/msgb64 emit the payload bytes as a single chunk.
type Synthesizer struct {
	mu     sync.Mutex
	script *scriptRunner
	texts  []string
}

func NewSynthesizer(script string) (*Synthesizer, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{script: runner}, nil
}

func (s *Synthesizer) Synthesize(ctx context.Context, input string) (*speech.Stream, error) {
	s.mu.Lock()
	s.texts = append(s.texts, input)
	a := s.script.next()
	s.mu.Unlock()

	var chunks [][]byte
	var streamErr error
	switch a.kind {
	case "err":
		return nil, fmt.Errorf("dummy synthesizer error class=%s", emptyAs(a.arg, "tts_api"))
	case "sleep":
		if err := sleep(ctx, a.arg); err != nil {
			return nil, err
		}
		chunks = silence(input)
	case "break":
		chunks = [][]byte{make([]byte, silenceChunkBytes)}
		streamErr = fmt.Errorf("dummy synthesizer stream error class=%s", emptyAs(a.arg, "tts_stream"))
	case "msg", "msgb64":
		payload, err := text(a, "")
		if err != nil {
			return nil, err
		}
		chunks = [][]byte{[]byte(payload)}
	default:
		chunks = silence(input)
	}

	stream := speech.NewStream(0)
	go func() {
		for _, pcm := range chunks {
			if err := stream.Send(speech.Chunk{PCM: pcm, SampleRate: SynthSampleRate, Channels: 1}); err != nil {
				stream.Finish(err)
				return
			}
		}
		stream.Finish(streamErr)
	}()
	return stream, nil
}

// Texts returns every text passed to Synthesize.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func silence(input string) [][]byte {
	n := len(strings.Fields(input))
	if n == 0 {
		n = 1
	}
	chunks := make([][]byte, n)
	for i := range chunks {
		chunks[i] = make([]byte, silenceChunkBytes)
	}
	return chunks
}
