// Package transport serves the browser front end and carries microphone
// audio and tutor replies over a WebSocket.
package transport

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stupiduntilnot/ielts-tutor/internal/session"
	"github.com/stupiduntilnot/ielts-tutor/internal/speech"
	"github.com/stupiduntilnot/ielts-tutor/internal/vad"
)

//go:embed static
var static embed.FS

// Server routes the UI, the audio WebSocket, metrics and health checks.
type Server struct {
	deps     session.Deps
	vad      vad.Config
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer creates a server. Each WebSocket connection gets its own
// session loop and pause detector built from deps and vadCfg.
func NewServer(deps session.Deps, vadCfg vad.Config, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	deps.Logger = logger
	return &Server{
		deps:     deps,
		vad:      vadCfg,
		gatherer: gatherer,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	ui, _ := fs.Sub(static, "static")
	mux.Handle("/", http.FileServer(http.FS(ui)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// CloseConnections closes every open WebSocket. http.Server.Shutdown does
// not track hijacked connections.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		conn.Close()
	}
}

func (s *Server) track(conn *websocket.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.track(conn, true)
	defer func() {
		s.track(conn, false)
		conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := session.NewLoop(s.deps, r.RemoteAddr)
	defer loop.Close()
	logger := s.logger.With(zap.String("session_id", loop.ID()))

	c := &client{conn: conn}
	c.SendState(StateIdle)

	detector := vad.New(s.vad)
	sampleRate := s.vad.SampleRate
	if sampleRate <= 0 {
		sampleRate = vad.DefaultConfig().SampleRate
	}

	var busy atomic.Bool
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("websocket read ended", zap.Error(err))
			}
			cancel()
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		// No barge-in: audio captured while the tutor is answering is dropped.
		if busy.Load() {
			continue
		}
		pcm, ok := detector.Feed(msg)
		if !ok {
			continue
		}

		busy.Store(true)
		c.SendState(StateResponding)
		wg.Add(1)
		go func(pcm []byte) {
			defer wg.Done()
			defer func() {
				c.SendState(StateIdle)
				busy.Store(false)
			}()
			utterance := speech.Utterance{PCM: pcm, SampleRate: sampleRate, Channels: 1}
			if err := loop.Respond(ctx, utterance, c); err != nil && ctx.Err() == nil {
				c.SendError(err.Error())
			}
		}(pcm)
	}
}
