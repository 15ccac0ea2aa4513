package hal

import "uvsense-go/drivers/veml6075"

// HALConfig is supplied on the "config/hal" bus topic.
type HALConfig struct {
	Version int      `json:"version"`
	Devices []DevCfg `json:"devices"`
}

type DevCfg struct {
	ID     string    `json:"id"`   // "uv0"
	Type   string    `json:"type"` // "veml6075"
	BusRef DevBusRef `json:"bus_ref"`
	Params any       `json:"params,omitempty"` // device-specific shape; may be a map or struct
}

type DevBusRef struct {
	Type string `json:"type"` // "i2c"
	ID   string `json:"id"`   // "i2c0"
}

// UVParams configures a veml6075 device. Empty strings select the driver
// defaults (50ms, normal, continuous).
type UVParams struct {
	IntegrationTime string                `json:"integration_time,omitempty" yaml:"integration_time"`
	Dynamic         string                `json:"dynamic,omitempty" yaml:"dynamic"`
	Mode            string                `json:"mode,omitempty" yaml:"mode"`
	Calibration     *veml6075.Calibration `json:"calibration,omitempty" yaml:"calibration"`
	PeriodMS        int                   `json:"period_ms,omitempty" yaml:"period_ms"`
	VerifyID        bool                  `json:"verify_id,omitempty" yaml:"verify_id"`
}

// Default sampling period and accepted bounds for set_rate / period_ms.
const (
	defaultPeriodMS = 2000
	minPeriodMS     = 200
	maxPeriodMS     = 3_600_000
)
