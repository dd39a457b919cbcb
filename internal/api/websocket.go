package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trading-engine/internal/events"
)

const (
	wsBuffer     = 256
	wsWriteWait  = 5 * time.Second
	wsPingPeriod = 30 * time.Second
)

// defaultStreamTypes are sent when the client does not pass ?types=.
var defaultStreamTypes = []events.EventType{
	events.EventOrderUpdate,
	events.EventTradeFill,
	events.EventLog,
	events.EventRiskAlert,
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func parseStreamTypes(raw string) ([]events.EventType, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultStreamTypes, nil
	}
	var out []events.EventType
	for _, part := range strings.Split(raw, ",") {
		t := events.EventType(strings.ToLower(strings.TrimSpace(part)))
		if t == "" {
			continue
		}
		if !t.Valid() {
			return nil, fmt.Errorf("unknown event type %q", t)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return defaultStreamTypes, nil
	}
	return out, nil
}

// websocket streams broadcaster events as JSON until the client goes away.
func (s *Server) websocket(c *gin.Context) {
	if s.Broadcaster == nil {
		respondError(c, http.StatusServiceUnavailable, "STREAM_UNAVAILABLE", "event stream not ready")
		return
	}
	types, err := parseStreamTypes(c.Query("types"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_EVENT_TYPE", err.Error())
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	stream, unsub := s.Broadcaster.Subscribe(wsBuffer, types...)
	defer unsub()

	// Reads only detect the close; the stream is one-way.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				unsub()
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
