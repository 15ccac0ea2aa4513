package app

import (
	"context"
	"encoding/json"
	"fmt"

	"uvsense-go/bus"
	"uvsense-go/internal/mqtt"
	"uvsense-go/types"

	"github.com/womat/debug"
)

// forward copies HAL capability values and states into the data store,
// the prometheus collectors and mqtt until ctx is done.
func (app *App) forward(ctx context.Context, values, states, halState, beats *bus.Subscription) {
	defer close(app.done)
	defer app.conn.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return

		case m := <-values.Channel():
			kind, id, ok := capOf(m.Topic)
			if !ok {
				continue
			}
			debug.TraceLog.Printf("value %s/%s: %+v", kind, id, m.Payload)
			app.data.setValue(kind, id, m.Payload)
			app.metrics.observe(kind, id, m.Payload)
			app.sendMQTT(kind+"/"+id, m.Payload)

		case m := <-states.Channel():
			kind, id, ok := capOf(m.Topic)
			if !ok {
				continue
			}
			st, ok := m.Payload.(types.CapabilityStatus)
			if !ok {
				continue
			}
			if st.Link == types.LinkDegraded {
				debug.ErrorLog.Printf("capability %s/%s degraded: %s", kind, id, st.Error)
				app.metrics.readError(kind, id, st.Error)
			}
			app.data.setState(kind, id, st)

		case m := <-halState.Channel():
			if st, ok := m.Payload.(types.HALState); ok {
				debug.InfoLog.Printf("hal %s: %s %s", st.Level, st.Status, st.Error)
				app.data.setHAL(st)
			}

		case m := <-beats.Channel():
			if hb, ok := m.Payload.(types.Heartbeat); ok {
				app.data.setHeartbeat(hb)
			}
		}
	}
}

// sendMQTT queues message for the mqtt broker under the configured topic.
func (app *App) sendMQTT(subtopic string, message any) {
	if app.config.MQTT.Topic == "" {
		return
	}
	b, err := json.Marshal(message)
	if err != nil {
		debug.ErrorLog.Printf("sendMQTT marshal: %v", err)
		return
	}
	app.mqtt.Send(mqtt.Message{
		Qos:      0,
		Retained: app.config.MQTT.Retained,
		Topic:    app.config.MQTT.Topic + "/" + subtopic,
		Payload:  b,
	})
}

// capOf extracts kind and id from hal/capability/<kind>/<id>/...
func capOf(t bus.Topic) (kind, id string, ok bool) {
	if len(t) < 4 {
		return "", "", false
	}
	kind, ok = t[2].(string)
	if !ok {
		return "", "", false
	}
	return kind, fmt.Sprint(t[3]), true
}
