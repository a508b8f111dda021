package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/pawhaven/pawchat/internal/server"
)

// serveWs upgrades the connection and hands it to the session handler.
// The bearer token rides in the token query parameter; authorization
// happens after the upgrade so a rejection can close the socket with a
// close code the client can distinguish from a network drop.
func (s *ChatApp) serveWs(kind server.ScopeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// only allow connections from allowed origins
				origin := r.Header.Get("Origin")
				if origin == "" {
					// if no origin header, allow the request
					return true
				}

				return slices.Contains(s.allowedOrigins, origin)
			},
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Println("error upgrading connection:", err)
			return
		}

		token := r.URL.Query().Get("token")
		s.session.HandleConnection(conn, kind, r.PathValue("id"), token)
	}
}
