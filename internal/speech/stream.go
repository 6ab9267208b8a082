package speech

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrStreamClosed is returned by Send once the consumer has closed the stream.
var ErrStreamClosed = errors.New("speech stream closed")

// Chunk is one block of synthesized 16-bit PCM.
type Chunk struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Stream is a lazy, finite sequence of audio chunks produced by one
// synthesis call. It is consumed once; it cannot be restarted.
//
// The producer calls Send for each chunk and Finish exactly once. The
// consumer ranges over Chunks, then checks Err. Close abandons the stream
// early and unblocks a pending Send.
type Stream struct {
	chunks     chan Chunk
	done       chan struct{}
	finished   chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewStream creates a stream whose channel buffers up to buffer chunks.
func NewStream(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{
		chunks:   make(chan Chunk, buffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Chunks returns the channel of audio chunks. It is closed after Finish.
func (s *Stream) Chunks() <-chan Chunk {
	return s.chunks
}

// Err waits for the producer to finish and returns its terminal error.
func (s *Stream) Err() error {
	<-s.finished
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Send delivers a chunk, blocking until the consumer takes it or closes the stream.
func (s *Stream) Send(c Chunk) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	select {
	case s.chunks <- c:
		return nil
	case <-s.done:
		return ErrStreamClosed
	}
}

// Finish records the producer's terminal error (nil on success) and closes
// the chunk channel. Only the first call has effect.
func (s *Stream) Finish(err error) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.finished)
		close(s.chunks)
	})
}

// StreamPCM starts a producer that reads r in blocks of blockSize bytes and
// sends each block as a chunk. Every chunk holds whole samples; trailing
// bytes short of a sample are dropped. r is closed when the producer exits.
// A read error other than io.EOF becomes the stream error.
func StreamPCM(r io.ReadCloser, blockSize, sampleRate, channels int) *Stream {
	if blockSize <= 0 {
		blockSize = 4096
	}
	// Keep blocks sample-aligned.
	frame := 2 * channels
	if frame > 0 && blockSize%frame != 0 {
		blockSize -= blockSize % frame
		if blockSize == 0 {
			blockSize = frame
		}
	}

	s := NewStream(8)
	go func() {
		defer r.Close()
		for {
			buf := make([]byte, blockSize)
			n, err := io.ReadFull(r, buf)
			// A short final read may end mid-sample; drop the partial frame.
			if frame > 0 {
				n -= n % frame
			}
			if n > 0 {
				if sendErr := s.Send(Chunk{PCM: buf[:n], SampleRate: sampleRate, Channels: channels}); sendErr != nil {
					s.Finish(sendErr)
					return
				}
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.Finish(nil)
				return
			}
			if err != nil {
				s.Finish(fmt.Errorf("read synthesized audio: %w", err))
				return
			}
		}
	}()
	return s
}
