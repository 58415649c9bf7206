package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades an ops dashboard connection and registers it with
// the hub. The caller is responsible for authenticating the request first.
func HandleWebSocket(c echo.Context, hub *Hub) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{Conn: conn}
	hub.register <- client

	// Send a welcome message
	conn.WriteJSON(models.OpsAlert{
		Kind:    "connected",
		Message: "Alert stream connected",
	})

	// Dashboard clients never send application messages; the read loop only
	// exists to detect disconnects and answer pings.
	go func() {
		defer func() {
			hub.unregister <- client
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	return nil
}
