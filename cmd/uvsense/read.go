package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"uvsense-go/drivers/veml6075"
	"uvsense-go/services/hal/platform"

	"github.com/womat/debug"
	"tinygo.org/x/drivers"
)

// settleMargin is added to the integration time before reading.
const settleMargin = 10 * time.Millisecond

type readOptions struct {
	Backend         string
	Device          string
	IntegrationTime string
	HighDynamic     bool
	Force           bool
	JSON            bool
	CheckID         bool
}

type readResult struct {
	Raw        veml6075.RawMeasurement `json:"raw"`
	Calibrated veml6075.Measurement    `json:"calibrated"`
}

func runRead(o readOptions, out io.Writer) error {
	f, err := platform.NewI2CFactory([]platform.BusConfig{{ID: "cli", Backend: o.Backend, Device: o.Device}})
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	b, _ := f.ByID("cli")
	return measureOnce(b, o, out)
}

// measureOnce configures the sensor, waits out one integration period,
// prints the result and powers the sensor down again.
func measureOnce(b drivers.I2C, o readOptions, out io.Writer) error {
	cfg := veml6075.Config{Enabled: true}
	var err error
	if cfg.IntegrationTime, err = veml6075.ParseIntegrationTime(o.IntegrationTime); err != nil {
		return err
	}
	if o.HighDynamic {
		cfg.Dynamic = veml6075.High
	}
	if o.Force {
		cfg.Mode = veml6075.ActiveForce
	}

	dev := veml6075.New(b)
	defer dev.Destroy()

	if o.CheckID {
		if err := dev.CheckDeviceID(); err != nil {
			return err
		}
	}
	if err := dev.Configure(cfg); err != nil {
		return err
	}
	defer func() {
		if err := dev.Disable(); err != nil {
			debug.ErrorLog.Printf("disable: %v", err)
		}
	}()

	if o.Force {
		if err := dev.TriggerMeasurement(); err != nil {
			return err
		}
	}
	debug.DebugLog.Printf("config %#02x, waiting %v", dev.Shadow(), cfg.IntegrationTime.Duration())
	time.Sleep(cfg.IntegrationTime.Duration() + settleMargin)

	raw, err := dev.ReadAll()
	if err != nil {
		return err
	}
	res := readResult{Raw: raw, Calibrated: dev.Calibration().Apply(raw)}

	if o.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err = fmt.Fprintf(out, "uva=%d uvb=%d uvcomp1=%d uvcomp2=%d\nUVA=%.2f UVB=%.2f UV index=%.2f\n",
		raw.UVA, raw.UVB, raw.UVComp1, raw.UVComp2,
		res.Calibrated.UVA, res.Calibrated.UVB, res.Calibrated.UVIndex)
	return err
}
