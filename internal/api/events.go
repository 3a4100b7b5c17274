package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// local single-user deployment; the API is not exposed publicly
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Events handles GET /v1/sessions/{domain}/events: upgrades to a websocket
// and streams login progress events for the domain until either side
// closes. Subscribing before any attempt starts is fine; the socket just
// idles until events arrive.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]

	events, cancel, err := h.svc.Subscribe(domain)
	if err != nil {
		writeMapped(w, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "domain", domain, "error", err)
		return
	}
	defer conn.Close()

	slog.Debug("event stream opened", "domain", domain)

	// reader only consumes control frames; any read error means the client
	// went away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("event stream read error", "domain", domain, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("event stream write failed", "domain", domain, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			slog.Debug("event stream closed by client", "domain", domain)
			return
		}
	}
}
