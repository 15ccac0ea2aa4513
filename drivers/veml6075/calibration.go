package veml6075

// Calibration holds the linear compensation coefficients from the Vishay
// application note "Designing the VEML6075 into an Application".
type Calibration struct {
	UVAVisible      float64 `json:"uva_visible" yaml:"uva_visible"`
	UVAIR           float64 `json:"uva_ir" yaml:"uva_ir"`
	UVBVisible      float64 `json:"uvb_visible" yaml:"uvb_visible"`
	UVBIR           float64 `json:"uvb_ir" yaml:"uvb_ir"`
	UVAResponsivity float64 `json:"uva_responsivity" yaml:"uva_responsivity"`
	UVBResponsivity float64 `json:"uvb_responsivity" yaml:"uvb_responsivity"`
}

// DefaultCalibration returns the application note coefficients for an
// open-air sensor without cover glass.
func DefaultCalibration() Calibration {
	return Calibration{
		UVAVisible:      2.22,
		UVAIR:           1.33,
		UVBVisible:      2.95,
		UVBIR:           1.74,
		UVAResponsivity: 0.001461,
		UVBResponsivity: 0.002591,
	}
}

// Measurement is a compensated reading. Values are not clamped and may be
// negative.
type Measurement struct {
	UVA     float64 `json:"uva"`
	UVB     float64 `json:"uvb"`
	UVIndex float64 `json:"uv_index"`
}

// Apply compensates a raw cycle for visible and IR cross-talk.
// The UV index is the plain mean of the two weighted channels.
func (c Calibration) Apply(raw RawMeasurement) Measurement {
	c1 := float64(raw.UVComp1)
	c2 := float64(raw.UVComp2)
	uva := float64(raw.UVA) - c.UVAVisible*c1 - c.UVAIR*c2
	uvb := float64(raw.UVB) - c.UVBVisible*c1 - c.UVBIR*c2
	return Measurement{
		UVA:     uva,
		UVB:     uvb,
		UVIndex: (uva*c.UVAResponsivity + uvb*c.UVBResponsivity) / 2,
	}
}

// Read performs ReadAll and applies the device calibration.
func (d *Device) Read() (Measurement, error) {
	raw, err := d.ReadAll()
	if err != nil {
		return Measurement{}, err
	}
	return d.cal.Apply(raw), nil
}
