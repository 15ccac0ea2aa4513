package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"uvsense-go/drivers/veml6075"
	"uvsense-go/services/hal/platform"
)

func TestMeasureOnce_ForceMode(t *testing.T) {
	sim := platform.NewSimVEML6075()
	var out bytes.Buffer
	err := measureOnce(sim, readOptions{IntegrationTime: "50", Force: true, HighDynamic: true, CheckID: true}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if sim.Triggers() != 1 {
		t.Fatalf("triggers = %d", sim.Triggers())
	}
	// Left powered down: 50ms, HD, force, shutdown.
	if got := sim.Config(); got != 0x0D {
		t.Fatalf("final config = %#02x, want 0x0d", got)
	}
	if !strings.Contains(out.String(), "UV index=2.61") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestMeasureOnce_JSON(t *testing.T) {
	sim := platform.NewSimVEML6075()
	sim.SetChannels(100, 200, 0, 0)
	var out bytes.Buffer
	if err := measureOnce(sim, readOptions{IntegrationTime: "50ms", JSON: true}, &out); err != nil {
		t.Fatal(err)
	}
	var res readResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Raw.UVA != 100 || res.Calibrated.UVB != 200 {
		t.Fatalf("result = %+v", res)
	}
	if sim.Triggers() != 0 {
		t.Fatal("continuous mode should not trigger")
	}
}

func TestMeasureOnce_BadIntegrationTime(t *testing.T) {
	err := measureOnce(platform.NewSimVEML6075(), readOptions{IntegrationTime: "75ms"}, &bytes.Buffer{})
	if !errors.Is(err, veml6075.ErrInvalidIntegrationTime) {
		t.Fatalf("err = %v", err)
	}
}
