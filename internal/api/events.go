package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsPingEvery  = 20 * time.Second
	wsWriteLimit = 5 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// handleEvents streams every merged peer as JSON until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("api: ws upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	stream := s.engine.Subscribe()
	defer stream.Close()

	// Reads only detect the close; clients never send anything.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "radar stopped"),
					time.Now().Add(wsWriteLimit))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteLimit))
			if err := conn.WriteJSON(PeerEventView{
				Peer:    s.view(ev.Peer),
				Outcome: ev.Outcome.String(),
			}); err != nil {
				s.log.Debug("api: ws write", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteLimit)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// PeerEventView is one websocket message.
type PeerEventView struct {
	Peer    PeerView `json:"peer"`
	Outcome string   `json:"outcome"`
}
