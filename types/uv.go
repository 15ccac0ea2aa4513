package types

// ------------------------
// Ultraviolet
// ------------------------

type UVInfo struct {
	Sensor          string `json:"sensor"` // "veml6075"
	Addr            uint16 `json:"addr"`   // I2C address
	Bus             string `json:"bus"`    // "i2c0", ...
	Unit            string `json:"unit"`   // "counts", "index"
	IntegrationTime string `json:"integration_time"`
	Dynamic         string `json:"dynamic"`
	Mode            string `json:"mode"`
}

// UVValue is one compensated channel in sensor counts. May be negative.
type UVValue struct {
	Counts float64 `json:"counts"`
	TsMs   int64   `json:"ts_ms"`
}

type UVIndexValue struct {
	Index float64 `json:"index"`
	TsMs  int64   `json:"ts_ms"`
}

// UVRawValue carries the four channel registers unmodified.
type UVRawValue struct {
	UVA     uint16 `json:"uva"`
	UVB     uint16 `json:"uvb"`
	UVComp1 uint16 `json:"uvcomp1"`
	UVComp2 uint16 `json:"uvcomp2"`
	TsMs    int64  `json:"ts_ms"`
}
