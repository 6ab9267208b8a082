package transport

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/stupiduntilnot/ielts-tutor/internal/speech"
)

// Server frame types.
const (
	FrameTranscript = "transcript"
	FrameReply      = "reply"
	FrameError      = "error"
	FrameState      = "state"
	FrameAudio      = "audio"
)

// Session states carried by state frames.
const (
	StateIdle       = "idle"
	StateResponding = "responding"
)

const writeWait = 10 * time.Second

type textFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type audioHeader struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	Size       int    `json:"size"`
}

// client is the session.Sink for one WebSocket connection. Writes are
// serialized; gorilla connections support one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) SendTranscript(text string) error {
	return c.writeText(FrameTranscript, text)
}

func (c *client) SendReply(text string) error {
	return c.writeText(FrameReply, text)
}

func (c *client) SendError(text string) error {
	return c.writeText(FrameError, text)
}

func (c *client) SendState(state string) error {
	return c.writeText(FrameState, state)
}

// SendAudio writes a JSON header followed by the PCM as a binary frame.
func (c *client) SendAudio(chunk speech.Chunk) error {
	header, err := sonic.Marshal(audioHeader{
		Type:       FrameAudio,
		SampleRate: chunk.SampleRate,
		Channels:   chunk.Channels,
		Size:       len(chunk.PCM),
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, header); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, chunk.PCM)
}

func (c *client) writeText(frameType, data string) error {
	payload, err := sonic.Marshal(textFrame{Type: frameType, Data: data})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
