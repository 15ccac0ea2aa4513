// services/hal/adaptor_veml6075.go
package hal

import (
	"context"
	"sync"
	"time"

	"uvsense-go/drivers/veml6075"
	"uvsense-go/errcode"
	"uvsense-go/types"
	"uvsense-go/x/mathx"
	"uvsense-go/x/timex"

	"tinygo.org/x/drivers"
)

func init() { RegisterBuilder("veml6075", BuilderFunc(buildVEML6075)) }

// Extra wait on top of the integration time before a conversion is assumed
// complete. The part has no ready flag.
const uvSettleMargin = 10 * time.Millisecond

func buildVEML6075(in BuildInput) (BuildOutput, error) {
	if in.BusRef.Type != "i2c" || in.BusRef.ID == "" {
		return BuildOutput{}, errcode.InvalidParams
	}
	i2c, ok := in.Buses.ByID(in.BusRef.ID)
	if !ok {
		return BuildOutput{}, errcode.UnknownBus
	}
	var p UVParams
	if in.Params != nil {
		if err := decodeJSON(in.Params, &p); err != nil {
			return BuildOutput{}, &errcode.E{C: errcode.InvalidParams, Op: "build", Msg: err.Error(), Err: err}
		}
	}
	ad, err := NewVEML6075Adaptor(in.DeviceID, in.BusRef.ID, i2c, p)
	if err != nil {
		return BuildOutput{}, err
	}
	period := p.PeriodMS
	if period == 0 {
		period = defaultPeriodMS
	}
	return BuildOutput{
		Adaptor:     ad,
		BusID:       in.BusRef.ID,
		SampleEvery: time.Duration(mathx.Clamp(period, minPeriodMS, maxPeriodMS)) * time.Millisecond,
	}, nil
}

type veml6075Adaptor struct {
	id    string
	busID string

	// mu serialises driver access between the bus worker and Control.
	mu         sync.Mutex
	dev        *veml6075.Device
	cfg        veml6075.Config
	verifyID   bool
	configured bool
	readyAt    time.Time
}

// NewVEML6075Adaptor validates params and wraps a driver instance. It does
// not touch the bus; the configuration is applied on the first Trigger.
func NewVEML6075Adaptor(id, busID string, bus drivers.I2C, p UVParams) (Adaptor, error) {
	cfg, err := p.driverConfig()
	if err != nil {
		return nil, err
	}
	cal := veml6075.DefaultCalibration()
	if p.Calibration != nil {
		cal = *p.Calibration
	}
	return &veml6075Adaptor{
		id:       id,
		busID:    busID,
		dev:      veml6075.NewCalibrated(bus, cal),
		cfg:      cfg,
		verifyID: p.VerifyID,
	}, nil
}

func (p UVParams) driverConfig() (veml6075.Config, error) {
	cfg := veml6075.Config{Enabled: true}
	var err error
	if p.IntegrationTime != "" {
		if cfg.IntegrationTime, err = veml6075.ParseIntegrationTime(p.IntegrationTime); err != nil {
			return cfg, err
		}
	}
	if cfg.Dynamic, err = veml6075.ParseDynamicSetting(p.Dynamic); err != nil {
		return cfg, err
	}
	if cfg.Mode, err = veml6075.ParseMode(p.Mode); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (a *veml6075Adaptor) ID() string { return a.id }

func (a *veml6075Adaptor) Capabilities() []CapInfo {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	info := func(unit string) types.Info {
		return types.Info{
			SchemaVersion: 1, Driver: "veml6075",
			Detail: types.UVInfo{
				Sensor: "veml6075", Addr: veml6075.Address, Bus: a.busID, Unit: unit,
				IntegrationTime: cfg.IntegrationTime.String(),
				Dynamic:         cfg.Dynamic.String(),
				Mode:            cfg.Mode.String(),
			},
		}
	}
	return []CapInfo{
		{Kind: string(types.KindUVA), Info: info("counts")},
		{Kind: string(types.KindUVB), Info: info("counts")},
		{Kind: string(types.KindUVIndex), Info: info("index")},
		{Kind: string(types.KindUVRaw), Info: info("counts")},
	}
}

// ensureConfigured runs inside the worker (or Control) with mu held.
func (a *veml6075Adaptor) ensureConfigured() error {
	if a.configured {
		return nil
	}
	if a.verifyID {
		if err := a.dev.CheckDeviceID(); err != nil {
			return err
		}
	}
	if err := a.dev.Configure(a.cfg); err != nil {
		return err
	}
	a.configured = true
	a.readyAt = time.Now().Add(a.cfg.IntegrationTime.Duration() + uvSettleMargin)
	return nil
}

func (a *veml6075Adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureConfigured(); err != nil {
		return 0, err
	}
	if !a.dev.Enabled() {
		return 0, errcode.Disabled
	}
	if a.dev.Mode() == veml6075.ActiveForce {
		if err := a.dev.TriggerMeasurement(); err != nil {
			return 0, err
		}
		a.readyAt = time.Now().Add(a.dev.IntegrationTime().Duration() + uvSettleMargin)
	}
	return timex.Until(a.readyAt), nil
}

func (a *veml6075Adaptor) Collect(ctx context.Context) (Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.dev.Enabled() {
		return nil, errcode.Disabled
	}
	if time.Now().Before(a.readyAt) {
		return nil, ErrNotReady
	}
	raw, err := a.dev.ReadAll()
	if err != nil {
		return nil, err
	}
	m := a.dev.Calibration().Apply(raw)
	ts := timex.NowMs()
	return Sample{
		{Kind: string(types.KindUVA), Payload: types.UVValue{Counts: m.UVA, TsMs: ts}, TsMs: ts},
		{Kind: string(types.KindUVB), Payload: types.UVValue{Counts: m.UVB, TsMs: ts}, TsMs: ts},
		{Kind: string(types.KindUVIndex), Payload: types.UVIndexValue{Index: m.UVIndex, TsMs: ts}, TsMs: ts},
		{Kind: string(types.KindUVRaw), Payload: types.UVRawValue{
			UVA: raw.UVA, UVB: raw.UVB, UVComp1: raw.UVComp1, UVComp2: raw.UVComp2, TsMs: ts,
		}, TsMs: ts},
	}, nil
}

// Control exposes the driver's configuration operations. Setting changes
// are applied immediately once the device has been configured, otherwise
// they are folded into the pending configuration.
func (a *veml6075Adaptor) Control(kind, method string, payload any) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	arg := stringArg(payload)
	switch method {
	case "set_integration_time", "set_dynamic", "set_mode":
		if arg == "" {
			return nil, errcode.InvalidPayload
		}
	}

	switch method {
	case "set_integration_time":
		it, err := veml6075.ParseIntegrationTime(arg)
		if err != nil {
			return nil, err
		}
		return a.apply(func() error { return a.dev.SetIntegrationTime(it) }, func() { a.cfg.IntegrationTime = it })
	case "set_dynamic":
		ds, err := veml6075.ParseDynamicSetting(arg)
		if err != nil {
			return nil, err
		}
		return a.apply(func() error { return a.dev.SetDynamicSetting(ds) }, func() { a.cfg.Dynamic = ds })
	case "set_mode":
		m, err := veml6075.ParseMode(arg)
		if err != nil {
			return nil, err
		}
		return a.apply(func() error { return a.dev.SetMode(m) }, func() { a.cfg.Mode = m })
	case "enable":
		return a.apply(a.dev.Enable, func() { a.cfg.Enabled = true })
	case "disable":
		return a.apply(a.dev.Disable, func() { a.cfg.Enabled = false })
	case "read_raw":
		if err := a.ensureConfigured(); err != nil {
			return nil, err
		}
		return a.dev.ReadAll()
	case "device_id":
		return a.dev.ReadDeviceID()
	case "config":
		return map[string]any{
			"shadow":           a.dev.Shadow(),
			"integration_time": a.cfg.IntegrationTime.String(),
			"dynamic":          a.cfg.Dynamic.String(),
			"mode":             a.cfg.Mode.String(),
			"enabled":          a.cfg.Enabled,
		}, nil
	default:
		return nil, ErrUnsupported
	}
}

// apply runs write against the device if it is configured and records the
// change in the desired configuration only when the write succeeded.
func (a *veml6075Adaptor) apply(write func() error, record func()) (any, error) {
	if a.configured {
		if err := write(); err != nil {
			return nil, err
		}
		a.readyAt = time.Now().Add(a.dev.IntegrationTime().Duration() + uvSettleMargin)
	}
	record()
	return map[string]any{"shadow": a.dev.Shadow()}, nil
}

// stringArg accepts a bare string or {"value": "..."}.
func stringArg(p any) string {
	switch v := p.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["value"].(string); ok {
			return s
		}
	}
	return ""
}
