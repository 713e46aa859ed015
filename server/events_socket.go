package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = (socketPongWait * 9) / 10
)

// eventsFrame is pushed to socket clients whenever either realtime channel changes
type eventsFrame struct {
	Type          string                `json:"type"`
	Performance   performanceResponse   `json:"performance"`
	Notifications notificationsResponse `json:"notifications"`
}

func (s *Server) eventsFrame() eventsFrame {
	perf := s.services.Performance
	return eventsFrame{
		Type:          "state",
		Performance:   performanceResponse{Status: perf.Status(), Updates: nonNil(perf.Updates())},
		Notifications: s.notificationsResponse(),
	}
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return s.config.GetAllowedOrigins().IsAllowedOrigin(origin)
		},
	}
}

// EventsSocketHandler streams channel state over a websocket. Changes are coalesced so a
// slow client only ever sees the latest state.
func (s *Server) EventsSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader().Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		changed := make(chan struct{}, 1)
		signal := func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}
		cancelPerf := s.services.Performance.OnChange(signal)
		defer cancelPerf()
		cancelNotif := s.services.Notifications.OnChange(signal)
		defer cancelNotif()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(socketPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(socketPingPeriod)
		defer ping.Stop()

		if err := s.writeFrame(conn); err != nil {
			return
		}
		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-changed:
				if err := s.writeFrame(conn); err != nil {
					s.logger.Debug().Err(err).Msg("websocket write failed")
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return conn.WriteJSON(s.eventsFrame())
}
