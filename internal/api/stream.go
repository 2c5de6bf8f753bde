package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wellbeing-foundation/registration-engine/internal/registration"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	streamBuffer     = 32
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

// StreamMessage is one frame on the registration stream. The first frame is
// always a snapshot; later frames carry transitions.
type StreamMessage struct {
	Type       string                   `json:"type"`
	View       *registration.View       `json:"view,omitempty"`
	Transition *registration.Transition `json:"transition,omitempty"`
	Data       string                   `json:"data,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.flowFor(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("registration stream connected", "flow_id", flow.ID())

	// Subscribers run on the emitting goroutine and must not block
	transitions := make(chan registration.Transition, streamBuffer)
	unsubscribe := flow.Subscribe(func(t registration.Transition) {
		select {
		case transitions <- t:
		default:
			slog.Warn("registration stream lagging, transition dropped",
				"flow_id", flow.ID(),
				"type", t.Kind,
			)
		}
	})
	defer unsubscribe()

	view := flow.View()
	if err := s.sendStreamMessage(conn, StreamMessage{Type: "snapshot", View: &view}); err != nil {
		return
	}

	// The client only ever closes; reading drives control frames
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			slog.Info("registration stream disconnected", "flow_id", flow.ID())
			return
		case t := <-transitions:
			if err := s.sendStreamMessage(conn, StreamMessage{Type: "transition", Transition: &t}); err != nil {
				return
			}
			if t.Kind == registration.TransitionClosed {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "registration closed"),
					time.Now().Add(streamWriteWait))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendStreamMessage(conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}
