package speech

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func drain(s *Stream) [][]byte {
	var out [][]byte
	for c := range s.Chunks() {
		out = append(out, c.PCM)
	}
	return out
}

func TestStream_DeliversInOrderThenError(t *testing.T) {
	s := NewStream(0)
	boom := errors.New("boom")
	go func() {
		for i := byte(0); i < 3; i++ {
			if err := s.Send(Chunk{PCM: []byte{i}}); err != nil {
				t.Errorf("send: %v", err)
			}
		}
		s.Finish(boom)
	}()

	assert.Equal(t, [][]byte{{0}, {1}, {2}}, drain(s))
	assert.ErrorIs(t, s.Err(), boom)
}

func TestStream_EmptySuccess(t *testing.T) {
	s := NewStream(1)
	s.Finish(nil)
	assert.Empty(t, drain(s))
	assert.NoError(t, s.Err())
}

func TestStream_FinishOnce(t *testing.T) {
	s := NewStream(1)
	s.Finish(nil)
	s.Finish(errors.New("late"))
	assert.NoError(t, s.Err())
}

func TestStream_CloseUnblocksSend(t *testing.T) {
	s := NewStream(0)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Send(Chunk{PCM: []byte{1}}) }()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after Close")
	}
}

func TestStreamPCM_Blocks(t *testing.T) {
	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i)
	}
	s := StreamPCM(io.NopCloser(bytes.NewReader(data)), 4, 24000, 1)

	var chunks []Chunk
	for c := range s.Chunks() {
		chunks = append(chunks, c)
	}
	require.NoError(t, s.Err())
	require.Len(t, chunks, 3)
	assert.Equal(t, []byte{0, 1, 2, 3}, chunks[0].PCM)
	assert.Equal(t, []byte{8, 9}, chunks[2].PCM)
	assert.Equal(t, 24000, chunks[0].SampleRate)
	assert.Equal(t, 1, chunks[0].Channels)
}

type failingReader struct {
	data   []byte
	closed bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, errors.New("connection reset")
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *failingReader) Close() error {
	f.closed = true
	return nil
}

func TestStreamPCM_ReadError(t *testing.T) {
	r := &failingReader{data: []byte{1, 2, 3, 4}}
	s := StreamPCM(r, 4, 24000, 1)

	assert.Equal(t, [][]byte{{1, 2, 3, 4}}, drain(s))
	err := s.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, r.closed)
}

func TestStreamPCM_AlignsBlockSize(t *testing.T) {
	s := StreamPCM(io.NopCloser(bytes.NewReader(make([]byte, 12))), 5, 16000, 1)
	for _, pcm := range drain(s) {
		assert.Zero(t, len(pcm)%2)
	}
	assert.NoError(t, s.Err())
}

func TestStreamPCM_DropsPartialSample(t *testing.T) {
	s := StreamPCM(io.NopCloser(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7})), 4, 24000, 1)
	assert.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6}}, drain(s))
	assert.NoError(t, s.Err())

	s = StreamPCM(io.NopCloser(bytes.NewReader([]byte{9})), 4, 24000, 1)
	assert.Empty(t, drain(s))
	assert.NoError(t, s.Err())

	// Stereo frames are four bytes.
	s = StreamPCM(io.NopCloser(bytes.NewReader(make([]byte, 11))), 8, 24000, 2)
	for _, pcm := range drain(s) {
		assert.Zero(t, len(pcm)%4)
	}
	assert.NoError(t, s.Err())
}

// Concatenated chunks reproduce the source bytes up to the last whole sample.
func TestStreamPCM_Reassembles(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 200).Draw(rt, "data")
		block := rapid.IntRange(1, 64).Draw(rt, "block")

		s := StreamPCM(io.NopCloser(bytes.NewReader(data)), block, 16000, 1)
		var got []byte
		for _, pcm := range drain(s) {
			got = append(got, pcm...)
		}
		if err := s.Err(); err != nil {
			rt.Fatalf("stream error: %v", err)
		}
		want := data[:len(data)-len(data)%2]
		if !bytes.Equal(got, want) {
			rt.Fatalf("reassembled %d bytes, want %d", len(got), len(want))
		}
	})
}
