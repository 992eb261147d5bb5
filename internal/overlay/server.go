// Package overlay serves display state to the on-screen overlay UI over
// WebSocket. The server is push-only: the session loop publishes frames at
// the configured interval and every connected client receives each one.
package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raidwatch/raidwatch/internal/config"
	"github.com/raidwatch/raidwatch/internal/session"
	"github.com/raidwatch/raidwatch/internal/timers"
)

// Frame is one overlay update.
type Frame struct {
	Type     string           `json:"type"`
	Snapshot session.Snapshot `json:"snapshot"`
	Alerts   []timers.Alert   `json:"alerts,omitempty"`
}

// Server broadcasts overlay frames to connected WebSocket clients.
type Server struct {
	cfg      config.OverlayConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	clients   map[*websocket.Conn]struct{}
	lastFrame []byte
}

// NewServer creates an overlay server; Run starts it.
func NewServer(cfg config.OverlayConfig, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The overlay UI loads from file:// and sends no Origin
			// header worth checking; the listener binds loopback only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Run serves the overlay endpoint until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/overlay", s.handleOverlay)

	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("overlay server listening", zap.String("address", s.cfg.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		s.closeClients()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("overlay server: %w", err)
	}
}

// Publish sends one frame to every connected client. Clients that fail a
// write are dropped.
func (s *Server) Publish(snap session.Snapshot, alerts []timers.Alert) {
	data, err := json.Marshal(Frame{Type: "snapshot", Snapshot: snap, Alerts: alerts})
	if err != nil {
		s.logger.Error("failed to marshal overlay frame", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFrame = data
	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Debug("dropping overlay client", zap.Error(err))
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// ClientCount returns the number of connected overlay clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("overlay upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	last := s.lastFrame
	s.mu.Unlock()

	s.logger.Info("overlay client connected", zap.String("remote", conn.RemoteAddr().String()))

	if last != nil {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, last); err != nil {
			s.remove(conn)
			return
		}
	}

	// Read loop exists only to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.remove(conn)
				return
			}
		}
	}()
}

func (s *Server) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[conn]; ok {
		conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		conn.WriteMessage(websocket.CloseMessage, msg)
		conn.Close()
		delete(s.clients, conn)
	}
}
