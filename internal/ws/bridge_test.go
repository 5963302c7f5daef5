package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatsim/internal/controller"
	"heatsim/internal/regulator"
)

func newTestBridge() (*Bridge, *Client) {
	hub := NewHub()
	client := &Client{hub: hub, send: make(chan []byte, 256)}
	hub.Register(client)
	return NewBridge(hub), client
}

func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	msg := <-c.send
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func TestBridge_OnRegulation(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnRegulation(controller.Result{
		Timestamp:        time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC),
		ActualOutdoor:    -5,
		SimulatedOutdoor: -7,
		Horizon:          8,
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeRegulation, env.Type)

	var p RegulationPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, -7.0, p.SimulatedOutdoor)
	assert.Equal(t, 8, p.Horizon)
}

func TestBridge_OnStatus(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnStatus(controller.Status{Phase: "solved", Running: true, IntervalSeconds: 900})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeStatus, env.Type)

	var p StatusPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "solved", p.Phase)
	assert.True(t, p.Running)
}

func TestBridge_OnError(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnError(regulator.ErrInsufficientPriceData)

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeRegulationError, env.Type)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "insufficient_price_data", p.Kind)
	assert.Contains(t, p.Error, "insufficient price data")
}
