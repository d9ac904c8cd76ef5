package websocket

import (
	"encoding/json"
	"log"
	"net/http"
)

func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// BroadcastJobEvent pushes a job lifecycle event (received, completed,
// failed) to every connected client.
func BroadcastJobEvent(hub *Hub, event string, data interface{}) {
	if hub == nil {
		return
	}
	message, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		log.Printf("Failed to marshal job event: %v", err)
		return
	}

	hub.Broadcast(message)
}
