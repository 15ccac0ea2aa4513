// services/hal/hal_test.go
package hal

import (
	"context"
	"testing"
	"time"

	"uvsense-go/bus"
	"uvsense-go/types"

	"tinygo.org/x/drivers"
)

type fakeFactory map[string]drivers.I2C

func (f fakeFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f[id]
	return b, ok
}

// waitFor drains sub until match returns true or the deadline passes.
func waitFor(t *testing.T, sub *bus.Subscription, d time.Duration, match func(*bus.Message) bool) *bus.Message {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case m := <-sub.Channel():
			if match(m) {
				return m
			}
		case <-deadline:
			t.Fatalf("timeout waiting on %v", sub.Topic())
			return nil
		}
	}
}

func request(t *testing.T, conn *bus.Connection, topic bus.Topic, payload any) types.Reply {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := conn.RequestWait(ctx, conn.NewMessage(topic, payload, false))
	if err != nil {
		t.Fatalf("request %v: %v", topic, err)
	}
	r, ok := m.Payload.(types.Reply)
	if !ok {
		t.Fatalf("reply payload %T", m.Payload)
	}
	return r
}

func startHAL(t *testing.T, i2c drivers.I2C) (*bus.Connection, context.CancelFunc) {
	t.Helper()
	b := bus.NewBus(64)
	halConn := b.NewConnection("hal")
	user := b.NewConnection("test")

	ctx, cancel := context.WithCancel(context.Background())
	go Run(ctx, halConn, fakeFactory{"i2c0": i2c})

	stateSub := user.Subscribe(bus.T("hal", "state"))
	waitFor(t, stateSub, time.Second, func(m *bus.Message) bool {
		s, _ := m.Payload.(types.HALState)
		return s.Level == "idle" && s.Status == "awaiting_config"
	})
	user.Unsubscribe(stateSub)
	return user, cancel
}

func uvConfig(params UVParams) HALConfig {
	return HALConfig{
		Version: 1,
		Devices: []DevCfg{{
			ID:     "uv0",
			Type:   "veml6075",
			BusRef: DevBusRef{Type: "i2c", ID: "i2c0"},
			Params: params,
		}},
	}
}

func TestHAL_EndToEnd_VEML6075(t *testing.T) {
	i2c := newFakeVEML()
	user, cancel := startHAL(t, i2c)
	defer cancel()

	capSub := user.Subscribe(bus.T("hal", "capability", "#"))
	stateSub := user.Subscribe(bus.T("hal", "state"))

	user.Publish(user.NewMessage(bus.T("config", "hal"),
		uvConfig(UVParams{IntegrationTime: "50ms", PeriodMS: 200}), true))

	waitFor(t, stateSub, time.Second, func(m *bus.Message) bool {
		s, _ := m.Payload.(types.HALState)
		return s.Level == "ready"
	})

	info := waitFor(t, capSub, time.Second, func(m *bus.Message) bool {
		return len(m.Topic) == 5 && m.Topic[2] == "uv_index" && m.Topic[4] == "info"
	})
	if id, _ := asInt(info.Topic[3]); id != 0 {
		t.Fatalf("uv_index capability id = %v", info.Topic[3])
	}
	detail := info.Payload.(types.Info).Detail.(types.UVInfo)
	if detail.IntegrationTime != "50ms" || detail.Addr != 0x10 {
		t.Fatalf("info detail = %+v", detail)
	}

	val := waitFor(t, capSub, 2*time.Second, func(m *bus.Message) bool {
		return len(m.Topic) == 5 && m.Topic[2] == "uv_index" && m.Topic[4] == "value"
	})
	idx := val.Payload.(types.UVIndexValue)
	if idx.Index < 2 || idx.Index > 3 {
		t.Fatalf("uv index = %v", idx.Index)
	}

	if r := request(t, user, bus.T("hal", "capability", "uva", 0, "control", "read_now"), nil); !r.OK {
		t.Fatalf("read_now: %+v", r)
	}

	r := request(t, user, bus.T("hal", "capability", "uva", 0, "control", "set_rate"), map[string]any{"period_ms": 50})
	if !r.OK || r.Result.(map[string]any)["period_ms"] != int64(minPeriodMS) {
		t.Fatalf("set_rate: %+v", r)
	}

	if r := request(t, user, bus.T("hal", "capability", "uva", 0, "control", "set_rate"), nil); r.OK || r.Error != "invalid_period" {
		t.Fatalf("set_rate without period: %+v", r)
	}

	r = request(t, user, bus.T("hal", "capability", "uvb", 0, "control", "set_dynamic"), "high")
	if !r.OK || r.Result.(map[string]any)["shadow"] != uint8(0x08) {
		t.Fatalf("set_dynamic: %+v", r)
	}

	if r := request(t, user, bus.T("hal", "capability", "uvb", 0, "control", "set_mode"), "burst"); r.OK || r.Error != "invalid_params" {
		t.Fatalf("set_mode burst: %+v", r)
	}

	if r := request(t, user, bus.T("hal", "capability", "uva", 7, "control", "read_now"), nil); r.OK || r.Error != "unknown_capability" {
		t.Fatalf("unknown capability: %+v", r)
	}
}

func TestHAL_BusFailureDegradesCapabilities(t *testing.T) {
	i2c := newFakeVEML()
	user, cancel := startHAL(t, i2c)
	defer cancel()

	capSub := user.Subscribe(bus.T("hal", "capability", "uva", "+", "state"))

	user.Publish(user.NewMessage(bus.T("config", "hal"),
		uvConfig(UVParams{IntegrationTime: "50ms", PeriodMS: 200}), true))

	waitFor(t, capSub, time.Second, func(m *bus.Message) bool {
		s, _ := m.Payload.(types.CapabilityStatus)
		return s.Link == types.LinkUp
	})

	i2c.setFail(true)
	if r := request(t, user, bus.T("hal", "capability", "uva", 0, "control", "read_now"), nil); !r.OK {
		t.Fatalf("read_now: %+v", r)
	}
	m := waitFor(t, capSub, 2*time.Second, func(m *bus.Message) bool {
		s, _ := m.Payload.(types.CapabilityStatus)
		return s.Link == types.LinkDegraded
	})
	if s := m.Payload.(types.CapabilityStatus); s.Error != "bus_error" {
		t.Fatalf("degraded error = %q", s.Error)
	}
}

func TestHAL_UnknownDeviceTypeReportsError(t *testing.T) {
	user, cancel := startHAL(t, newFakeVEML())
	defer cancel()

	stateSub := user.Subscribe(bus.T("hal", "state"))
	cfg := uvConfig(UVParams{})
	cfg.Devices[0].Type = "veml6070"
	user.Publish(user.NewMessage(bus.T("config", "hal"), cfg, true))

	m := waitFor(t, stateSub, time.Second, func(m *bus.Message) bool {
		s, _ := m.Payload.(types.HALState)
		return s.Level == "error"
	})
	if s := m.Payload.(types.HALState); s.Status != "apply_config_failed" {
		t.Fatalf("state = %+v", s)
	}
}

func TestHAL_RemovedDeviceGoesDown(t *testing.T) {
	user, cancel := startHAL(t, newFakeVEML())
	defer cancel()

	capSub := user.Subscribe(bus.T("hal", "capability", "uv_index", 0, "state"))
	user.Publish(user.NewMessage(bus.T("config", "hal"), uvConfig(UVParams{}), true))
	waitFor(t, capSub, time.Second, func(m *bus.Message) bool {
		s, _ := m.Payload.(types.CapabilityStatus)
		return s.Link == types.LinkUp
	})

	user.Publish(user.NewMessage(bus.T("config", "hal"), HALConfig{Version: 2}, true))
	waitFor(t, capSub, time.Second, func(m *bus.Message) bool {
		s, _ := m.Payload.(types.CapabilityStatus)
		return s.Link == types.LinkDown
	})
}

func infoIT(m *bus.Message) string {
	info, ok := m.Payload.(types.Info)
	if !ok {
		return ""
	}
	d, _ := info.Detail.(types.UVInfo)
	return d.IntegrationTime
}

func TestHAL_SettingControlRefreshesInfo(t *testing.T) {
	user, cancel := startHAL(t, newFakeVEML())
	defer cancel()

	infoSub := user.Subscribe(bus.T("hal", "capability", "uva", 0, "info"))
	user.Publish(user.NewMessage(bus.T("config", "hal"), uvConfig(UVParams{IntegrationTime: "50ms"}), true))
	waitFor(t, infoSub, time.Second, func(m *bus.Message) bool { return infoIT(m) == "50ms" })

	if r := request(t, user, bus.T("hal", "capability", "uva", 0, "control", "set_integration_time"), "200ms"); !r.OK {
		t.Fatalf("set_integration_time: %+v", r)
	}
	waitFor(t, infoSub, time.Second, func(m *bus.Message) bool { return infoIT(m) == "200ms" })
}

func TestHAL_ChangedParamsRebuildDevice(t *testing.T) {
	user, cancel := startHAL(t, newFakeVEML())
	defer cancel()

	infoSub := user.Subscribe(bus.T("hal", "capability", "uva", "+", "info"))
	user.Publish(user.NewMessage(bus.T("config", "hal"), uvConfig(UVParams{IntegrationTime: "50ms"}), true))
	waitFor(t, infoSub, time.Second, func(m *bus.Message) bool { return infoIT(m) == "50ms" })

	user.Publish(user.NewMessage(bus.T("config", "hal"), uvConfig(UVParams{IntegrationTime: "400ms"}), true))
	m := waitFor(t, infoSub, time.Second, func(m *bus.Message) bool { return infoIT(m) == "400ms" })
	if id, _ := asInt(m.Topic[3]); id != 0 {
		t.Fatalf("rebuilt device moved to capability id %v", m.Topic[3])
	}

	r := request(t, user, bus.T("hal", "capability", "uva", 0, "control", "config"), nil)
	if !r.OK || r.Result.(map[string]any)["integration_time"] != "400ms" {
		t.Fatalf("config after reload: %+v", r)
	}
}
