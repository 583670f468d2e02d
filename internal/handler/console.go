package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"camtrap/internal/logger"
	wsservice "camtrap/internal/service/websocket"
	"camtrap/internal/ui"
)

// Upgrader upgrades HTTP connections to WebSocket. Browsers may only connect
// from pages served by this host.
var Upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts requests without an Origin header, which browsers always send.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ConsoleWebsocketHandler streams form updates and console output to a
// browser. The client first receives the full form state, then every event
// the hub broadcasts.
func ConsoleWebsocketHandler(form *ui.Form, hub *wsservice.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		state, err := form.Snapshot()
		if err != nil {
			connection.Close()
			return
		}
		if err := hub.Send(connection, wsservice.Event{Type: wsservice.EventState, State: &state}); err != nil {
			logger.Error("Error sending form state: %v", err)
			connection.Close()
			return
		}

		if !hub.Register(connection) {
			connection.Close()
			return
		}
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Console viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
