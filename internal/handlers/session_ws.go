package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/soragane/tilescore/internal/hub"
)

// SessionWSHandler upgrades the HTTP connection to a WebSocket viewer of a
// session. Every accepted mutation of the session is pushed to the viewer as
// a full snapshot; teardown is pushed as a distinct one-shot notice. The
// viewer is unsubscribed as soon as its disconnect is detected, not on the
// next publish attempt.
func SessionWSHandler(logger *logrus.Logger, s *APIServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/session/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing session code (/api/session/ws/{code})", http.StatusBadRequest)
			return
		}
		code := strings.ToUpper(pathParts[0])

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"table"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "table" {
			c.Close(BadSubprotocolError, "client must speak the table subprotocol")
			return
		}

		// Subscription to a nonexistent (or already torn down) code is
		// rejected with an immediate not-found close.
		snapshot, err := s.Service.GetSession(code)
		if err != nil {
			c.Close(InvalidSessionCodeError, "session does not exist")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		viewer := hub.NewViewer(logger, cancel)

		s.Hub.Subscribe(code, viewer)
		logger.Infof("Viewer %v (%s) subscribed to session %s", viewer.ID, remoteAddr, code)

		// Seed the viewer with the current state before any mutation push.
		viewer.Write(hub.Message{
			"type":    "session_state",
			"session": snapshot,
		})

		go viewerWritePump(ctx, c, viewer, logger)

		// Blocks until the connection drops or the client closes.
		viewerReadPump(ctx, c, viewer, logger, code)

		logger.Infof("Viewer %v readPump exited for session %s. Initiating cleanup.", viewer.ID, code)
		s.Hub.Unsubscribe(code, viewer)
		viewer.Cancel()
	}
}

// viewerReadPump drains incoming messages so disconnects are detected
// promptly. Viewers are read-only apart from keepalive pings.
func viewerReadPump(ctx context.Context, c *websocket.Conn, viewer *hub.Viewer, logger *logrus.Logger, code string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("Session %s: WebSocket closed normally for viewer %v.", code, viewer.ID)
			} else if strings.Contains(err.Error(), "context canceled") {
				// Teardown or handler exit already logged.
			} else {
				logger.Warnf("Session %s: Read error for viewer %v: %v (CloseStatus: %d)", code, viewer.ID, err, closeStatus)
			}
			return
		}

		if typ != websocket.MessageText {
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			logger.Warnf("Session %s: Invalid json from viewer %v: %v", code, viewer.ID, err)
			continue
		}
		if t, _ := packet["type"].(string); t == "ping" {
			viewer.Write(hub.Message{"type": "pong"})
		}
	}
}

// viewerWritePump forwards hub messages to the WebSocket and sends periodic
// pings. After delivering a teardown notice it closes the connection with a
// dedicated close code so clients can clear local state and exit the room.
func viewerWritePump(ctx context.Context, c *websocket.Conn, viewer *hub.Viewer, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-viewer.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing msg for viewer %v: %v", viewer.ID, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for viewer %v: %v", viewer.ID, err)
				return
			}

			if t, _ := msg["type"].(string); t == "session_ended" {
				c.Close(SessionEndedClose, "session ended")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to ping viewer %v: %v. Assuming disconnect.", viewer.ID, err)
				return
			}
		}
	}
}
