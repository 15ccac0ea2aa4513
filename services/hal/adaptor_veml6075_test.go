// services/hal/adaptor_veml6075_test.go
package hal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"uvsense-go/errcode"
	"uvsense-go/types"

	"tinygo.org/x/drivers"
)

// Compile-time check.
var _ drivers.I2C = (*fakeVEML)(nil)

var errFakeNACK = errors.New("nack")

// Scripted VEML6075-like fake. Trigger writes are counted and not stored,
// matching the self-clearing hardware bit.
type fakeVEML struct {
	mu       sync.Mutex
	config   byte
	writes   []byte
	triggers int
	regs     map[byte]uint16
	fail     bool
}

func newFakeVEML() *fakeVEML {
	return &fakeVEML{
		config: 0x01,
		regs: map[byte]uint16{
			0x07: 3967, 0x09: 5818, 0x0A: 1007, 0x0B: 727, 0x0C: 0x0026,
		},
	}
}

func (f *fakeVEML) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if addr != 0x10 {
		return errFakeNACK
	}
	if f.fail {
		return errFakeNACK
	}
	switch {
	case len(w) == 3 && w[0] == 0x00 && len(r) == 0:
		if w[1]&0x02 != 0 {
			f.triggers++
		}
		f.config = w[1] &^ 0x02
		f.writes = append(f.writes, w[1])
	case len(w) == 1 && len(r) == 2:
		v := f.regs[w[0]]
		r[0], r[1] = byte(v), byte(v>>8)
	default:
		return errFakeNACK
	}
	return nil
}

func (f *fakeVEML) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeVEML) snapshot() (config byte, triggers int, writes []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config, f.triggers, append([]byte(nil), f.writes...)
}

func TestVEML6075Adaptor_DoesNotTouchBusOnBuild(t *testing.T) {
	bus := newFakeVEML()
	if _, err := NewVEML6075Adaptor("uv0", "i2c0", bus, UVParams{IntegrationTime: "100ms"}); err != nil {
		t.Fatal(err)
	}
	if _, _, w := bus.snapshot(); len(w) != 0 {
		t.Fatalf("bus written during build: %v", w)
	}
}

func TestVEML6075Adaptor_InvalidParams(t *testing.T) {
	bus := newFakeVEML()
	for _, p := range []UVParams{
		{IntegrationTime: "75ms"},
		{Mode: "burst"},
		{Dynamic: "max"},
	} {
		if _, err := NewVEML6075Adaptor("uv0", "i2c0", bus, p); errcode.Of(err) != errcode.InvalidParams {
			t.Fatalf("%+v: err = %v", p, err)
		}
	}
}

func TestVEML6075Adaptor_ContinuousCycle(t *testing.T) {
	bus := newFakeVEML()
	ad, err := NewVEML6075Adaptor("uv0", "i2c0", bus, UVParams{IntegrationTime: "50ms", Dynamic: "high"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	after, err := ad.Trigger(ctx)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	cfg, triggers, _ := bus.snapshot()
	if cfg != 0x08 {
		t.Fatalf("config = %#02x, want 0x08 (50ms, HD, continuous, enabled)", cfg)
	}
	if triggers != 0 {
		t.Fatal("continuous mode issued a trigger")
	}
	if after <= 0 {
		t.Fatal("expected a settle delay after first configuration")
	}

	// Before the first conversion completes.
	if _, err := ad.Collect(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	time.Sleep(after + 5*time.Millisecond)
	s, err := ad.Collect(ctx)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	idx := findReading(t, s, string(types.KindUVIndex)).(types.UVIndexValue)
	uva := 3967 - 2.22*1007 - 1.33*727
	uvb := 5818 - 2.95*1007 - 1.74*727
	want := (uva*0.001461 + uvb*0.002591) / 2
	if diff := idx.Index - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("uv index = %v, want %v", idx.Index, want)
	}
	raw := findReading(t, s, string(types.KindUVRaw)).(types.UVRawValue)
	if raw.UVA != 3967 || raw.UVComp2 != 727 {
		t.Fatalf("raw = %+v", raw)
	}
}

func TestVEML6075Adaptor_ActiveForceTriggers(t *testing.T) {
	bus := newFakeVEML()
	ad, err := NewVEML6075Adaptor("uv0", "i2c0", bus, UVParams{IntegrationTime: "100ms", Mode: "active_force"})
	if err != nil {
		t.Fatal(err)
	}
	after, err := ad.Trigger(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	cfg, triggers, writes := bus.snapshot()
	if triggers != 1 {
		t.Fatalf("triggers = %d, want 1", triggers)
	}
	if cfg != 0x14 {
		t.Fatalf("config = %#02x, want 0x14", cfg)
	}
	if last := writes[len(writes)-1]; last != 0x16 {
		t.Fatalf("trigger frame = %#02x, want 0x16", last)
	}
	if after < 100*time.Millisecond {
		t.Fatalf("collect-after %v shorter than integration time", after)
	}
}

func TestVEML6075Adaptor_DisabledRefusesTrigger(t *testing.T) {
	bus := newFakeVEML()
	ad, _ := NewVEML6075Adaptor("uv0", "i2c0", bus, UVParams{})
	if _, err := ad.Control("uva", "disable", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := ad.Trigger(context.Background()); !errors.Is(err, errcode.Disabled) {
		t.Fatalf("err = %v, want disabled", err)
	}
	if cfg, _, _ := bus.snapshot(); cfg&0x01 == 0 {
		t.Fatalf("device left enabled: %#02x", cfg)
	}
}

func TestVEML6075Adaptor_DisableDuringCycle(t *testing.T) {
	bus := newFakeVEML()
	ad, _ := NewVEML6075Adaptor("uv0", "i2c0", bus, UVParams{IntegrationTime: "50ms"})
	if _, err := ad.Trigger(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := ad.Control("uva", "disable", nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)

	s, err := ad.Collect(context.Background())
	if !errors.Is(err, errcode.Disabled) {
		t.Fatalf("err = %v, want disabled", err)
	}
	if len(s) != 0 {
		t.Fatalf("collected %d readings from a shut down sensor", len(s))
	}
}

func TestVEML6075Adaptor_BusErrorSurfaces(t *testing.T) {
	bus := newFakeVEML()
	ad, _ := NewVEML6075Adaptor("uv0", "i2c0", bus, UVParams{})
	bus.setFail(true)
	_, err := ad.Trigger(context.Background())
	if !errors.Is(err, errFakeNACK) || errcode.Of(err) != errcode.BusError {
		t.Fatalf("err = %v (code %q)", err, errcode.Of(err))
	}
	// The next trigger retries configuration once the bus recovers.
	bus.setFail(false)
	if _, err := ad.Trigger(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestVEML6075Adaptor_ControlSettings(t *testing.T) {
	bus := newFakeVEML()
	ad, _ := NewVEML6075Adaptor("uv0", "i2c0", bus, UVParams{})
	if _, err := ad.Trigger(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := ad.Control("uva", "set_integration_time", map[string]any{"value": "400ms"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ad.Control("uva", "set_dynamic", "high"); err != nil {
		t.Fatal(err)
	}
	res, err := ad.Control("uva", "set_mode", "force")
	if err != nil {
		t.Fatal(err)
	}
	if got := res.(map[string]any)["shadow"]; got != uint8(0x3C) {
		t.Fatalf("shadow = %v, want 0x3C", got)
	}
	if cfg, _, _ := bus.snapshot(); cfg != 0x3C {
		t.Fatalf("device config = %#02x, want 0x3C", cfg)
	}

	if _, err := ad.Control("uva", "set_mode", nil); !errors.Is(err, errcode.InvalidPayload) {
		t.Fatalf("missing payload: %v", err)
	}
	if _, err := ad.Control("uva", "self_test", nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("unknown method: %v", err)
	}

	id, err := ad.Control("uva", "device_id", nil)
	if err != nil || id != uint16(0x0026) {
		t.Fatalf("device_id = %v, %v", id, err)
	}
}

func TestVEML6075Adaptor_VerifyID(t *testing.T) {
	bus := newFakeVEML()
	bus.regs[0x0C] = 0x1234
	ad, _ := NewVEML6075Adaptor("uv0", "i2c0", bus, UVParams{VerifyID: true})
	if _, err := ad.Trigger(context.Background()); errcode.Of(err) != errcode.UnexpectedDevice {
		t.Fatalf("err = %v", err)
	}
}

func findReading(t *testing.T, s Sample, kind string) any {
	t.Helper()
	for _, r := range s {
		if r.Kind == kind {
			return r.Payload
		}
	}
	t.Fatalf("reading kind %q not found in sample: %#v", kind, s)
	return nil
}
