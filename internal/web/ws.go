package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMsgSize        = 1 << 12
	defaultWSInterval = 1 * time.Second
	maxWSInterval     = 60 * time.Second
)

type wsEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Any origin may read the stream; it carries the same data as /index.json.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams the status document every interval (?interval=2s).
func (s *Server) handleWS(c *gin.Context) {
	interval := s.wsInterval
	if q := c.Query("interval"); q != "" {
		if d, err := time.ParseDuration(q); err == nil && d > 0 && d <= maxWSInterval {
			interval = d
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnw("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go s.wsReader(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer ping.Stop()

	if err := s.sendState(conn); err != nil {
		s.log.Debugw("ws write failed", "err", err)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debugw("ws ping failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := s.sendState(conn); err != nil {
				s.log.Debugw("ws write failed", "err", err)
				return
			}
		}
	}
}

// wsReader drains client frames so control messages are handled and a
// disconnect is noticed.
func (s *Server) wsReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) sendState(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "state", Data: s.ctl.View(s.now()).Inner()})
}
