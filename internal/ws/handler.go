package ws

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"heatsim/internal/controller"
	"heatsim/internal/regulator"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler manages WebSocket connections and routes client commands to the
// controller.
type Handler struct {
	hub  *Hub
	ctrl *controller.Controller
}

func NewHandler(hub *Hub, ctrl *controller.Controller) *Handler {
	return &Handler{hub: hub, ctrl: ctrl}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()

	h.sendStatus(client)
	h.readPump(client)
}

func (h *Handler) sendStatus(c *Client) {
	msg, err := NewEnvelope(TypeStatus, StatusFromController(h.ctrl.Status()))
	if err != nil {
		log.Printf("Error marshaling status: %v", err)
		return
	}
	c.send <- msg
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		h.handleMessage(msg)
	}
}

func (h *Handler) handleMessage(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Printf("Invalid message: %v", err)
		return
	}

	switch env.Type {
	case TypeRegulateNow:
		h.ctrl.TriggerRegulate()

	case TypeSetPriceControl:
		var p SetPriceControlPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("Invalid price control payload: %v", err)
			return
		}
		if err := h.ctrl.SetPriceControl(p.Enabled); err != nil {
			h.broadcastError(err)
		}

	case TypeSetOption:
		var p SetOptionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("Invalid set_option payload: %v", err)
			return
		}
		if err := h.ctrl.UpdateOptions(map[string]any{p.Key: p.Value}); err != nil {
			h.broadcastError(err)
		}

	default:
		log.Printf("Unknown message type: %s", env.Type)
	}
}

func (h *Handler) broadcastError(e error) {
	msg, err := NewEnvelope(TypeRegulationError, ErrorPayload{
		Kind:  regulator.ErrorKind(e),
		Error: e.Error(),
	})
	if err != nil {
		log.Printf("Error marshaling error payload: %v", err)
		return
	}
	h.hub.Broadcast(msg)
}
