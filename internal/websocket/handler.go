package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/barangay/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// connections to WebSocket and runs them as Hub clients. Browsers are held to
// same-origin by the default accept options.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	logger = logger.With("component", "websocket")
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("accept", "error", err)
			return
		}

		client := NewClient(hub, conn, ac.OperatorID, auth.IsAdmin(r.Context()))
		logger.Debug("client connected", "operator", ac.Username, "clients", hub.ClientCount()+1)
		client.Run(r.Context())
	}
}
