package platform

import (
	"errors"
	"testing"

	"uvsense-go/drivers/veml6075"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/io/i2c/driver"
	"tinygo.org/x/drivers"
)

var (
	_ drivers.I2C = (*SimVEML6075)(nil)
	_ drivers.I2C = (*devfsBus)(nil)
)

type fakeConn struct {
	addr   int
	log    *[]string
	reply  []byte
	closed bool
}

func (c *fakeConn) Tx(w, r []byte) error {
	*c.log = append(*c.log, txString(c.addr, w, len(r)))
	copy(r, c.reply)
	return nil
}

func (c *fakeConn) Close() error { c.closed = true; return nil }

type fakeOpener struct {
	log   []string
	conns map[int]*fakeConn
	opens int
}

func (o *fakeOpener) Open(addr int, tenbit bool) (driver.Conn, error) {
	o.opens++
	if o.conns == nil {
		o.conns = map[int]*fakeConn{}
	}
	c := &fakeConn{addr: addr, log: &o.log, reply: []byte{0xCD, 0xAB}}
	o.conns[addr] = c
	return c, nil
}

func txString(addr int, w []byte, rn int) string {
	s := []byte{byte('0' + addr%10), ':'}
	for _, b := range w {
		const hex = "0123456789abcdef"
		s = append(s, hex[b>>4], hex[b&0xF])
	}
	return string(s) + "/" + string(rune('0'+rn))
}

func TestDevfsBus_TranslatesTransactions(t *testing.T) {
	o := &fakeOpener{}
	b := newDevfsBus(o)

	if err := b.Tx(0x10, []byte{0x00, 0x01, 0x00}, nil); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 2)
	if err := b.Tx(0x10, []byte{0x07}, r); err != nil {
		t.Fatal(err)
	}
	if r[0] != 0xCD || r[1] != 0xAB {
		t.Fatalf("read = %x", r)
	}
	if o.opens != 1 {
		t.Fatalf("opens = %d, want one handle per address", o.opens)
	}
	want := []string{"6:000100/0", "6:07/2"}
	if diff := cmp.Diff(want, o.log); diff != "" {
		t.Fatalf("tx log mismatch (-want +got):\n%s", diff)
	}

	if err := b.Tx(0x10, []byte{0x01, 0x02}, r); !errors.Is(err, ErrUnsupportedTx) {
		t.Fatalf("multi-byte write-read err = %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if !o.conns[0x10].closed {
		t.Fatal("handle not closed")
	}
}

func TestDevfsBus_DriverReadAll(t *testing.T) {
	b := newDevfsBus(&fakeOpener{})
	d := veml6075.New(b)
	raw, err := d.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := veml6075.RawMeasurement{UVA: 0xABCD, UVB: 0xABCD, UVComp1: 0xABCD, UVComp2: 0xABCD}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Fatalf("raw mismatch (-want +got):\n%s", diff)
	}
}

func TestFactory_SimBackend(t *testing.T) {
	f, err := NewI2CFactory([]BusConfig{{ID: "i2c0", Backend: BackendSim}})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	b, ok := f.ByID("i2c0")
	if !ok {
		t.Fatal("bus i2c0 missing")
	}
	if _, ok := f.ByID("i2c9"); ok {
		t.Fatal("unexpected bus i2c9")
	}

	d := veml6075.New(b)
	if err := d.SetIntegrationTime(veml6075.IT200ms); err != nil {
		t.Fatal(err)
	}
	if err := d.SetMode(veml6075.ActiveForce); err != nil {
		t.Fatal(err)
	}
	if err := d.TriggerMeasurement(); err != nil {
		t.Fatal(err)
	}
	sim := b.(*SimVEML6075)
	if sim.Config() != 0x25 || sim.Triggers() != 1 {
		t.Fatalf("sim config=%#02x triggers=%d", sim.Config(), sim.Triggers())
	}
	if err := d.CheckDeviceID(); err != nil {
		t.Fatalf("device id: %v", err)
	}
	m, err := d.Read()
	if err != nil {
		t.Fatal(err)
	}
	if m.UVIndex < 2.6 || m.UVIndex > 2.62 {
		t.Fatalf("uv index = %v", m.UVIndex)
	}
}

func TestSim_NACKsOtherAddresses(t *testing.T) {
	s := NewSimVEML6075()
	if err := s.Tx(0x38, []byte{0x07}, make([]byte, 2)); !errors.Is(err, ErrSimNACK) {
		t.Fatalf("err = %v", err)
	}
	if s.LastTx.Addr != 0x38 || s.LastTx.Rn != 2 {
		t.Fatalf("last tx = %+v", s.LastTx)
	}
}

func TestNewI2CFactory_Errors(t *testing.T) {
	cases := []struct {
		name string
		cfgs []BusConfig
	}{
		{"missing id", []BusConfig{{Backend: BackendSim}}},
		{"duplicate", []BusConfig{{ID: "a", Backend: BackendSim}, {ID: "a", Backend: BackendSim}}},
		{"backend", []BusConfig{{ID: "a", Backend: "spi"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewI2CFactory(tc.cfgs); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := NewI2CFactory([]BusConfig{{ID: "a", Backend: "spi"}}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v", err)
	}
}
