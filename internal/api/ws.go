package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blogloom/realtime/internal/realtime"
	"github.com/blogloom/realtime/internal/types"
)

const closeGracePeriod = time.Second

// serveWs upgrades the connection and resolves the bearer credential
// presented as a query parameter. An unauthenticated attempt is closed
// with a policy-violation code before any registration happens.
func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
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

	userId, err := s.userIdFromToken(r.URL.Query().Get("token"))
	if err != nil {
		s.closeUnauthenticated(conn, err)
		return
	}

	user, err := s.db.GetUserById(r.Context(), userId)
	if err != nil {
		s.closeUnauthenticated(conn, err)
		return
	}

	client := realtime.NewClient(types.User{
		Id:       user.Id,
		Username: user.Username,
	}, conn, s.rt, s.log)

	s.rt.RegisterClient(client)
	go client.Write()
	go client.Read()
}

func (s *App) closeUnauthenticated(conn *websocket.Conn, err error) {
	s.log.Println("ws authentication failed:", err)

	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Authentication failed")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); err != nil {
		s.log.Println("write close message:", err)
	}
	conn.Close()
}
