package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/pulse/async"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Clients only send control frames
	maxMessageSize = 512
)

// HandleJobWebSocket pushes a job's record on every change until it reaches a
// terminal status, then closes the connection. The first message is the
// current record. Each ping tick also re-reads the job, so a change dropped by
// a full subscriber buffer still ends the watch.
func (s *Server) HandleJobWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	// Subscribe before the snapshot so no change between the two is lost
	updates := s.queue.Subscribe()
	defer s.queue.Unsubscribe(updates)

	job, err := s.controller.Status(r.Context(), jobID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Debugw("WebSocket upgrade failed", logger.FieldJobID, shortID(jobID), logger.FieldError, err)
		return
	}
	defer conn.Close()

	s.wg.Add(1)
	defer s.wg.Done()
	s.watchers.Add(1)
	defer s.watchers.Add(-1)

	log := s.logger.With(logger.FieldJobID, shortID(jobID))
	log.Debugw("Job watcher connected")

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	if !s.push(conn, job.Summary()) {
		return
	}
	if job.Status.IsTerminal() {
		s.closeWatch(conn, websocket.CloseNormalClosure, "job finished")
		return
	}

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case update := <-updates:
			if update.ID != jobID {
				continue
			}
			if !s.push(conn, update) {
				return
			}
			if update.Status.IsTerminal() {
				log.Debugw("Job finished, closing watcher", logger.FieldStatus, update.Status)
				s.closeWatch(conn, websocket.CloseNormalClosure, "job finished")
				return
			}
		case <-ticker.C:
			if current, err := s.queue.GetJob(jobID); err == nil && current.Status.IsTerminal() {
				log.Debugw("Job finished without an update, closing watcher", logger.FieldStatus, current.Status)
				if s.push(conn, current.Summary()) {
					s.closeWatch(conn, websocket.CloseNormalClosure, "job finished")
				}
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.Debugw("Job watcher disconnected")
			return
		case <-s.ctx.Done():
			s.closeWatch(conn, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// readPump discards client messages and keeps the read deadline fresh from pongs.
// closed is closed when the client goes away.
func (s *Server) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) push(conn *websocket.Conn, job *async.Job) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(job); err != nil {
		s.logger.Debugw("WebSocket write failed", logger.FieldJobID, shortID(job.ID), logger.FieldError, err)
		return false
	}
	return true
}

func (s *Server) closeWatch(conn *websocket.Conn, code int, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
