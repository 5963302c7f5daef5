package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatsim/internal/controller"
	"heatsim/internal/model"
	"heatsim/internal/regulator"
	"heatsim/internal/store"
)

// testController wires a regulator with fresh measurements so a triggered
// cycle can actually solve.
func testController(hub *Hub) (*controller.Controller, *regulator.MPCRegulator) {
	s := store.New()
	now := time.Now()
	outdoorID := model.SensorHomeAssistantID[model.SensorOutdoorTemp]
	indoorID := model.SensorHomeAssistantID[model.SensorIndoorTemp]
	s.AddReadings([]model.Reading{
		{Timestamp: now.Add(-time.Minute), SensorID: outdoorID, Type: model.SensorOutdoorTemp, Value: -5},
		{Timestamp: now.Add(-time.Minute), SensorID: indoorID, Type: model.SensorIndoorTemp, Value: 18},
	})

	reg := regulator.NewMPCRegulator(regulator.DefaultParameters())
	ctrl := controller.New(controller.Config{
		OutdoorSensorID: outdoorID,
		IndoorSensorID:  indoorID,
	}, reg, s, NewBridge(hub))
	return ctrl, reg
}

func dialHandler(t *testing.T, handler *Handler) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readJSON(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func sendJSON(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	data, err := NewEnvelope(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestHandler_SendsStatusOnConnect(t *testing.T) {
	hub := NewHub()
	ctrl, _ := testController(hub)
	handler := NewHandler(hub, ctrl)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()

	env := readJSON(t, conn)
	assert.Equal(t, TypeStatus, env.Type)

	var p StatusPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "idle", p.Phase, "nothing measured before the first cycle")
	assert.False(t, p.Running)
}

func TestHandler_RegulateNow(t *testing.T) {
	hub := NewHub()
	ctrl, _ := testController(hub)
	handler := NewHandler(hub, ctrl)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()

	readJSON(t, conn) // initial status

	sendJSON(t, conn, TypeRegulateNow, nil)

	// The cycle publishes a regulation result followed by a status update.
	var sawResult bool
	for i := 0; i < 2; i++ {
		env := readJSON(t, conn)
		if env.Type == TypeRegulation {
			sawResult = true
			var p RegulationPayload
			require.NoError(t, json.Unmarshal(env.Payload, &p))
			assert.Equal(t, -5.0, p.ActualOutdoor)
			assert.NotEmpty(t, p.SimulatedOutdoorTemperatures)
		}
	}
	assert.True(t, sawResult)
}

func TestHandler_SetPriceControl(t *testing.T) {
	hub := NewHub()
	ctrl, reg := testController(hub)
	handler := NewHandler(hub, ctrl)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()
	readJSON(t, conn) // initial status

	sendJSON(t, conn, TypeSetPriceControl, SetPriceControlPayload{Enabled: true})

	env := readJSON(t, conn) // status broadcast after the toggle
	assert.Equal(t, TypeStatus, env.Type)
	assert.True(t, reg.Parameters().ElectricityPriceEnabled)
}

func TestHandler_SetOption(t *testing.T) {
	hub := NewHub()
	ctrl, reg := testController(hub)
	handler := NewHandler(hub, ctrl)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()
	readJSON(t, conn) // initial status

	sendJSON(t, conn, TypeSetOption, SetOptionPayload{Key: "target_temperature", Value: 22.0})

	assert.Eventually(t, func() bool {
		return reg.Parameters().TargetTemperature == 22.0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_SetOptionRejectsUnknownKey(t *testing.T) {
	hub := NewHub()
	ctrl, _ := testController(hub)
	handler := NewHandler(hub, ctrl)

	conn, cleanup := dialHandler(t, handler)
	defer cleanup()
	readJSON(t, conn) // initial status

	sendJSON(t, conn, TypeSetOption, SetOptionPayload{Key: "bogus", Value: 1})

	env := readJSON(t, conn)
	assert.Equal(t, TypeRegulationError, env.Type)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "config", p.Kind)
}
