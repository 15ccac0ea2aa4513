// Package veml6075 provides a driver for the Vishay VEML6075 UVA/UVB light
// sensor.
//
//	d := veml6075.New(bus)
//	err := d.Enable()
//	m, err := d.Read() // calibrated UVA, UVB and UV index
//
// The CONFIG register is write-only. The driver keeps a shadow copy of the
// last value the device accepted and derives every write from it.
//
// The device gives no "conversion done" indication. In ActiveForce mode the
// caller triggers, waits IntegrationTime.Duration() itself, then reads.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package veml6075

import (
	"errors"

	"tinygo.org/x/drivers"
)

// ErrUnexpectedID is returned by CheckDeviceID when the part does not report
// DeviceID.
var ErrUnexpectedID = errors.New("veml6075: unexpected device id")

// BusError wraps a failed I2C transaction. Err is the transport error as
// returned by the bus, untouched.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string { return "veml6075: " + e.Op + ": " + e.Err.Error() }
func (e *BusError) Unwrap() error { return e.Err }

// Config is applied by Configure. The zero value is 50 ms, normal dynamic
// range, continuous mode, shut down.
type Config struct {
	IntegrationTime IntegrationTime
	Dynamic         DynamicSetting
	Mode            Mode
	Enabled         bool
}

// Device is a handle to one VEML6075. It is not safe for concurrent use.
type Device struct {
	bus    drivers.I2C
	config uint8 // shadow of CONFIG
	cal    Calibration

	// Fixed buffers to avoid per-call heap allocations.
	w [3]byte
	r [2]byte
}

// New returns a handle using the default calibration. It does not touch the
// bus; the shadow starts in shutdown so the sensor is held inactive until
// Enable.
func New(bus drivers.I2C) *Device {
	return NewCalibrated(bus, DefaultCalibration())
}

// NewCalibrated is like New with explicit calibration coefficients.
func NewCalibrated(bus drivers.I2C, cal Calibration) *Device {
	return &Device{
		bus:    bus,
		config: configInitial,
		cal:    cal,
	}
}

// Destroy hands the bus back to the caller. The device is left as is.
func (d *Device) Destroy() drivers.I2C {
	bus := d.bus
	d.bus = nil
	return bus
}

// Shadow returns the last CONFIG value the device accepted.
func (d *Device) Shadow() uint8 { return d.config }

// Calibration returns the coefficients used by Read.
func (d *Device) Calibration() Calibration { return d.cal }

// Enable clears the shutdown bit.
func (d *Device) Enable() error {
	return d.writeConfig(d.config &^ bitShutdown)
}

// Disable sets the shutdown bit.
func (d *Device) Disable() error {
	return d.writeConfig(d.config | bitShutdown)
}

// SetMode selects continuous or active force (one-shot) operation.
// There is no completion signal, so no non-blocking one-shot API exists;
// see IntegrationTime.Duration.
func (d *Device) SetMode(m Mode) error {
	switch m {
	case Continuous:
		return d.writeConfig(d.config &^ bitActiveForce)
	case ActiveForce:
		return d.writeConfig(d.config | bitActiveForce)
	}
	return ErrInvalidMode
}

// SetIntegrationTime rewrites the UV_IT field.
func (d *Device) SetIntegrationTime(it IntegrationTime) error {
	if !it.valid() {
		return ErrInvalidIntegrationTime
	}
	return d.writeConfig(d.config&itKeep | itTable[it].code<<itShift)
}

// SetDynamicSetting selects normal or high dynamic range.
func (d *Device) SetDynamicSetting(ds DynamicSetting) error {
	switch ds {
	case Normal:
		return d.writeConfig(d.config &^ bitHighDynamic)
	case High:
		return d.writeConfig(d.config | bitHighDynamic)
	}
	return ErrInvalidDynamicSetting
}

// TriggerMeasurement starts one conversion in ActiveForce mode. The trigger
// bit clears itself in hardware, so the shadow is not updated.
func (d *Device) TriggerMeasurement() error {
	return d.writeFrame("trigger", d.config|bitTrigger)
}

// IntegrationTime decodes the UV_IT field of the shadow.
func (d *Device) IntegrationTime() IntegrationTime {
	code := (d.config & itMask) >> itShift
	for i := range itTable {
		if itTable[i].code == code {
			return IntegrationTime(i)
		}
	}
	return IT50ms
}

// Mode decodes the active force bit of the shadow.
func (d *Device) Mode() Mode {
	if d.config&bitActiveForce != 0 {
		return ActiveForce
	}
	return Continuous
}

// Enabled reports whether the shadow has the shutdown bit clear.
func (d *Device) Enabled() bool { return d.config&bitShutdown == 0 }

// Configure applies integration time, dynamic setting and mode, then the
// power state. It stops at the first failed write; earlier writes stay
// applied and are reflected in the shadow.
func (d *Device) Configure(cfg Config) error {
	if err := d.SetIntegrationTime(cfg.IntegrationTime); err != nil {
		return err
	}
	if err := d.SetDynamicSetting(cfg.Dynamic); err != nil {
		return err
	}
	if err := d.SetMode(cfg.Mode); err != nil {
		return err
	}
	if cfg.Enabled {
		return d.Enable()
	}
	return d.Disable()
}

// writeConfig is the only path that changes the shadow, and only after the
// device acknowledged the write.
func (d *Device) writeConfig(v uint8) error {
	if err := d.writeFrame("write config", v); err != nil {
		return err
	}
	d.config = v
	return nil
}

// CONFIG frame: register, value, fixed zero high byte.
func (d *Device) writeFrame(op string, v uint8) error {
	d.w[0] = regConfig
	d.w[1] = v
	d.w[2] = 0
	if err := d.bus.Tx(Address, d.w[:3], nil); err != nil {
		return &BusError{Op: op, Err: err}
	}
	return nil
}
