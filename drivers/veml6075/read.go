package veml6075

// RawMeasurement holds the four channel registers of one read cycle.
type RawMeasurement struct {
	UVA     uint16 `json:"uva"`
	UVB     uint16 `json:"uvb"`
	UVComp1 uint16 `json:"uvcomp1"`
	UVComp2 uint16 `json:"uvcomp2"`
}

// ReadAll reads UVA, UVB, UVCOMP1 and UVCOMP2 in that order. The first
// failing read aborts the cycle and nothing is returned for it.
func (d *Device) ReadAll() (RawMeasurement, error) {
	uva, err := d.ReadUVA()
	if err != nil {
		return RawMeasurement{}, err
	}
	uvb, err := d.ReadUVB()
	if err != nil {
		return RawMeasurement{}, err
	}
	c1, err := d.ReadUVComp1()
	if err != nil {
		return RawMeasurement{}, err
	}
	c2, err := d.ReadUVComp2()
	if err != nil {
		return RawMeasurement{}, err
	}
	return RawMeasurement{UVA: uva, UVB: uvb, UVComp1: c1, UVComp2: c2}, nil
}

func (d *Device) ReadUVA() (uint16, error)     { return d.readWord(regUVA) }
func (d *Device) ReadUVB() (uint16, error)     { return d.readWord(regUVB) }
func (d *Device) ReadUVComp1() (uint16, error) { return d.readWord(regUVComp1) }
func (d *Device) ReadUVComp2() (uint16, error) { return d.readWord(regUVComp2) }
func (d *Device) ReadDeviceID() (uint16, error) {
	return d.readWord(regDeviceID)
}

// CheckDeviceID reads DEVICE_ID and compares it against DeviceID.
func (d *Device) CheckDeviceID() error {
	id, err := d.ReadDeviceID()
	if err != nil {
		return err
	}
	if id != DeviceID {
		return ErrUnexpectedID
	}
	return nil
}

// I2C 16-bit word read (Little-endian: LOW then HIGH).
func (d *Device) readWord(reg byte) (uint16, error) {
	d.w[0] = reg
	if err := d.bus.Tx(Address, d.w[:1], d.r[:2]); err != nil {
		return 0, &BusError{Op: "read register " + regName(reg), Err: err}
	}
	return uint16(d.r[0]) | uint16(d.r[1])<<8, nil
}

func regName(reg byte) string {
	switch reg {
	case regUVA:
		return "UVA"
	case regUVB:
		return "UVB"
	case regUVComp1:
		return "UVCOMP1"
	case regUVComp2:
		return "UVCOMP2"
	case regDeviceID:
		return "DEVICE_ID"
	}
	return "?"
}
