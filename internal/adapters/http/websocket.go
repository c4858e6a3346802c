package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/brooks/internal/pkg/metrics"
	"github.com/samirrijal/brooks/internal/session"
)

// wsMessage is sent by the client.
type wsMessage struct {
	Action string          `json:"action"` // "event" | "cancel" | "snapshot"
	Event  json.RawMessage `json:"event"`  // engine-native pointer event for "event"
}

// wsFrame is sent to the client.
type wsFrame struct {
	Type  string             `json:"type"` // "state" | "error"
	State *session.ViewState `json:"state,omitempty"`
	Error string             `json:"error,omitempty"`
}

// WebSocketHandler streams view state to the client and accepts pointer
// events, so a map shell can drive the session over one connection.
// Clients send JSON: {"action":"event","event":{"type":"mousedown",...}}
func WebSocketHandler(sess *session.Orchestrator) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("component", "ws", "remote", remoteAddr)
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Only the latest state matters; a slow client skips intermediate ones.
		updates := make(chan session.ViewState, 1)
		push := func(vs session.ViewState) {
			select {
			case updates <- vs:
			default:
				select {
				case <-updates:
				default:
				}
				select {
				case updates <- vs:
				default:
				}
			}
		}
		unsubscribe := sess.Subscribe(push)
		defer unsubscribe()
		push(sess.Snapshot())

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case vs := <-updates:
					if err := writeJSON(wsFrame{Type: "state", State: &vs}); err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsFrame{Type: "error", Error: "invalid JSON"})
				continue
			}

			switch m.Action {
			case "event":
				if len(m.Event) == 0 {
					_ = writeJSON(wsFrame{Type: "error", Error: "event is required"})
					continue
				}
				if err := sess.DispatchMapEvent(m.Event); err != nil {
					_ = writeJSON(wsFrame{Type: "error", Error: err.Error()})
				}
			case "cancel":
				sess.CancelGesture()
			case "snapshot":
				push(sess.Snapshot())
			default:
				_ = writeJSON(wsFrame{Type: "error", Error: "unknown action: " + m.Action})
			}
		}

		close(done)
		logger.Info("ws client disconnected")
	}
}
