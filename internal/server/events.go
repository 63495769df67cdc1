package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/sightline/internal/logging"
)

const writeWait = 10 * time.Second

// handleEventsWS streams monitor events as JSON messages. The optional
// ?site= query restricts the stream to one site.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	site := r.URL.Query().Get("site")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	events, unsubscribe := s.monitor.Events().Subscribe(s.cfg.EventBuffer)
	defer unsubscribe()
	s.logger.Info("event stream opened", logging.Field{Key: "site", Value: site})

	// The reader only notices the client going away; incoming messages are ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if site != "" && ev.Site != site {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("event stream write failed", logging.Field{Key: "error", Value: err.Error()})
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			s.logger.Info("event stream closed", logging.Field{Key: "site", Value: site})
			return
		case <-r.Context().Done():
			return
		}
	}
}
