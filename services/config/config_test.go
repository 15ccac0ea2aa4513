package config

import (
	"errors"
	"testing"
	"time"

	"uvsense-go/bus"
)

func TestService_PublishRetainedPerSection(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewService(map[string]any{
		"mode":   "dev",
		"debug":  true,
		"region": map[string]any{"code": "eu"},
	})
	if err := svc.Publish(conn); err != nil {
		t.Fatal(err)
	}

	// Subscribe afterwards; retained messages should arrive immediately.
	sub := conn.Subscribe(bus.T(configPrefix, "#"))

	got := map[string]any{}
	deadline := time.After(500 * time.Millisecond)
	for len(got) < 3 {
		select {
		case m := <-sub.Channel():
			key, ok := m.Topic[1].(string)
			if !ok || m.Topic[0] != configPrefix {
				t.Fatalf("unexpected topic %#v", m.Topic)
			}
			got[key] = m.Payload
		case <-deadline:
			t.Fatalf("expected 3 retained messages, got %v", got)
		}
	}
	if got["mode"] != "dev" || got["debug"] != true {
		t.Fatalf("payloads = %#v", got)
	}
	if m, ok := got["region"].(map[string]any); !ok || m["code"] != "eu" {
		t.Fatalf("region = %#v", got["region"])
	}
}

func TestService_SetAndClear(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test-set")
	svc := NewService(nil)
	if err := svc.Publish(conn); !errors.Is(err, ErrNoSections) {
		t.Fatalf("err = %v", err)
	}

	svc.Set(conn, "heartbeat", 5)
	sub := conn.Subscribe(Topic("heartbeat"))
	if m := <-sub.Channel(); m.Payload != 5 {
		t.Fatalf("payload = %v", m.Payload)
	}
	conn.Unsubscribe(sub)

	svc.Set(conn, "heartbeat", nil)
	sub = conn.Subscribe(Topic("heartbeat"))
	select {
	case m := <-sub.Channel():
		t.Fatalf("retained message not cleared: %v", m.Payload)
	case <-time.After(20 * time.Millisecond):
	}
}
