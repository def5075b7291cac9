package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/Elephantprime/Unhinged-sub000/internal/api"
	"github.com/Elephantprime/Unhinged-sub000/internal/metrics"
	"github.com/Elephantprime/Unhinged-sub000/internal/sockets"
	"github.com/Elephantprime/Unhinged-sub000/internal/utils"
)

const statusPingInterval = 30 * time.Second

// setupStatusSocket serves the live status feed for one stream. UI clients
// use it to render the viewer count and participant list without polling.
func (s *Server) setupStatusSocket() {
	s.app.Get("/ws/status/:id", websocket.New(func(c *websocket.Conn) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic in /ws/status", "error", err)
			}
		}()

		s.listenStatusSocket(c)
	}))
}

func (s *Server) listenStatusSocket(c *websocket.Conn) {
	streamID := c.Params("id")
	socketID := sockets.SocketID(c.NetConn().RemoteAddr().String())
	soc := sockets.NewSocket(c)

	s.statusSockets.AddSocket(socketID, soc)
	metrics.StatusSocketsActive.Inc()
	defer func() {
		s.statusSockets.CloseSocket(socketID)
		metrics.StatusSocketsActive.Dec()
	}()

	slog.Debug("status socket connected", "stream", streamID, "socket", socketID)

	sendStatus := func() {
		if _, err := s.registry.Get(context.Background(), streamID); err != nil {
			_ = soc.WriteJSON(api.StatusMessage{Event: api.StatusEventStreamEnded})
			_ = soc.Close()
			return
		}

		entries := s.rosterEntries(context.Background(), streamID)
		_ = soc.WriteJSON(api.StatusMessage{
			Event: api.StatusEventRoster,
			Roster: &api.RosterMessage{
				StreamID: streamID,
				Count:    len(entries),
				Viewers:  api.ToViewerInfos(entries),
			},
		})
	}

	sendStatus()
	pushTimer := utils.SetIntervalTimer(s.manager.Get().Server.StatusPushIntervalDuration(), sendStatus)
	pingTimer := utils.SetIntervalTimer(statusPingInterval, func() {
		_ = soc.WriteJSON(api.StatusMessage{
			Event: api.StatusEventPing,
			Ping:  &api.PingMessage{Timestamp: time.Now().Unix()},
		})
	})
	defer pushTimer.Stop()
	defer pingTimer.Stop()

	// Drain the connection until the client hangs up; inbound payloads are
	// ignored, the feed is push only.
	var discard json.RawMessage
	for {
		if err := soc.ReadJSON(&discard); err != nil {
			slog.Debug("status socket disconnected", "stream", streamID, "socket", socketID)
			return
		}
	}
}
