package realtime

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// Handler upgrades the request to a WebSocket and runs it as a hub client.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Browser clients connect cross-origin during development
		})
		if err != nil {
			hub.logger.Error("websocket accept", "error", err)
			return
		}

		client := newClient(hub, conn)
		client.run(r.Context())
	}
}
