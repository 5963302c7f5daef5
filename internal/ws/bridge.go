package ws

import (
	"log"

	"heatsim/internal/controller"
	"heatsim/internal/regulator"
)

// Bridge implements controller.Callback and broadcasts events to the
// WebSocket hub.
type Bridge struct {
	hub *Hub
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

func (b *Bridge) OnRegulation(result controller.Result) {
	msg, err := NewEnvelope(TypeRegulation, RegulationFromResult(result))
	if err != nil {
		log.Printf("Error marshaling regulation result: %v", err)
		return
	}
	b.hub.BroadcastRegulation(msg)
}

func (b *Bridge) OnStatus(status controller.Status) {
	msg, err := NewEnvelope(TypeStatus, StatusFromController(status))
	if err != nil {
		log.Printf("Error marshaling controller status: %v", err)
		return
	}
	b.hub.Broadcast(msg)
}

func (b *Bridge) OnError(e error) {
	msg, err := NewEnvelope(TypeRegulationError, ErrorPayload{
		Kind:  regulator.ErrorKind(e),
		Error: e.Error(),
	})
	if err != nil {
		log.Printf("Error marshaling regulation error: %v", err)
		return
	}
	b.hub.Broadcast(msg)
}
