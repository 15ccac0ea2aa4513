// Package mqtt forwards messages queued on a channel to an MQTT broker.
package mqtt

import (
	"context"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

// quiesce is the specified number of milliseconds to wait for existing work to be completed.
const quiesce = 250

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler mqttlib.Client
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// New generates a new mqtt broker client. C is buffered by queueLen.
func New(queueLen int) *Handler {
	return &Handler{
		C: make(chan Message, queueLen),
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, no mqtt message are send.
func (m *Handler) Connect(broker, clientID string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().AddBroker(broker).SetClientID(clientID).SetAutoReconnect(true)
	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// Connected reports whether a broker is configured and the client is up.
func (m *Handler) Connected() bool {
	return m.handler != nil && m.handler.IsConnected()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	<-t.Done()
	return t.Error()
}

// Disconnect will end the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.handler == nil {
		return nil
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Send queues msg without blocking. It reports false when the queue is full.
func (m *Handler) Send(msg Message) bool {
	select {
	case m.C <- msg:
		return true
	default:
		debug.ErrorLog.Printf("mqtt queue full, dropping message for %v", msg.Topic)
		return false
	}
}

// Service listens to messages on channel C and sends them to mqtt until ctx
// is done or C is closed. If no handler or topic is defined, the message is
// ignored.
func (m *Handler) Service(ctx context.Context) {
	for {
		var d Message
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-m.C:
			if !ok {
				return
			}
			d = msg
		}

		if m.handler == nil || d.Topic == "" {
			continue
		}

		if !m.handler.IsConnected() {
			debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

			if err := m.ReConnect(); err != nil {
				debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
				continue
			}
		}

		debug.DebugLog.Printf("publishing %v bytes to topic %v", len(d.Payload), d.Topic)
		t := m.handler.Publish(d.Topic, d.Qos, d.Retained, d.Payload)

		go func(topic string) {
			<-t.Done()
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
			}
		}(d.Topic)
	}
}
