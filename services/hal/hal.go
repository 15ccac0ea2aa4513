// services/hal/hal.go
package hal

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"uvsense-go/bus"
	"uvsense-go/errcode"
	"uvsense-go/types"
	"uvsense-go/x/mathx"
	"uvsense-go/x/timex"
)

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

// Run serves the HAL on conn until ctx is cancelled. Devices are created from
// the retained "config/hal" document.
func Run(ctx context.Context, conn *bus.Connection, i2cFactory I2CBusFactory) {
	h := newService(conn, i2cFactory)
	h.loop(ctx)
}

func newService(conn *bus.Connection, i2cFactory I2CBusFactory) *service {
	return &service{
		conn:       conn,
		i2cFactory: i2cFactory,
		workers:    map[string]MeasurementWorker{},
		devices:    map[string]devEntry{},
		capToDev:   map[capKey]string{},
		nextCapID:  map[string]int{},
		devPeriod:  map[string]time.Duration{},
		devNextDue: map[string]time.Time{},
		results:    make(chan Result, 32),
	}
}

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

type devEntry struct {
	adaptor Adaptor
	caps    map[string]int // kind -> numeric capability id
	busID   string
	cfg     DevCfg
}

type capKey struct {
	kind string
	id   int
}

type service struct {
	conn       *bus.Connection
	i2cFactory I2CBusFactory

	workers map[string]MeasurementWorker
	devices map[string]devEntry

	capToDev  map[capKey]string
	nextCapID map[string]int

	devPeriod  map[string]time.Duration
	devNextDue map[string]time.Time

	timer *time.Timer

	// Results fan-in
	results chan Result
}

// -----------------------------------------------------------------------------
// Main loop
// -----------------------------------------------------------------------------

func (s *service) loop(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "hal"})
	ctrlSub := s.conn.Subscribe(bus.Topic{"hal", "capability", "+", "+", "control", "+"})
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	s.timer = time.NewTimer(time.Hour)
	defer s.timer.Stop()

	for {
		if next := s.earliestDevDue(); next.IsZero() {
			resetTimer(s.timer, time.Hour)
		} else {
			resetTimer(s.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg HALConfig
			if err := decodeJSON(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := s.applyConfig(ctx, cfg); err != nil {
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg := <-ctrlSub.Channel():
			s.handleControl(msg)

		case <-s.timer.C:
			now := time.Now()
			for devID, due := range s.devNextDue {
				if !now.Before(due) {
					s.submitMeasure(devID, false)
					s.bumpDevNext(devID, now)
				}
			}

		case r := <-s.results:
			s.handleResult(r)
		}
	}
}

// hal/capability/<kind>/<id:int>/control/<method>
func (s *service) handleControl(msg *bus.Message) {
	if len(msg.Topic) < 6 {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	kind, _ := msg.Topic[2].(string)
	idNum, ok := asInt(msg.Topic[3])
	if !ok || kind == "" {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	devID, ok := s.capToDev[capKey{kind: kind, id: idNum}]
	if !ok {
		s.replyErr(msg, errcode.UnknownCapability)
		return
	}
	method, _ := msg.Topic[5].(string)

	switch method {
	case "read_now":
		if s.submitMeasure(devID, true) {
			s.bumpDevNext(devID, time.Now())
			s.replyOK(msg, nil)
		} else {
			s.replyErr(msg, errcode.Busy)
		}
	case "set_rate":
		ms := parsePeriodMS(msg.Payload)
		if ms <= 0 {
			s.replyErr(msg, errcode.InvalidPeriod)
			return
		}
		s.devPeriod[devID] = time.Duration(mathx.Clamp(ms, minPeriodMS, maxPeriodMS)) * time.Millisecond
		s.bumpDevNext(devID, time.Now())
		s.replyOK(msg, map[string]any{"period_ms": s.devPeriod[devID].Milliseconds()})
	default:
		ent := s.devices[devID]
		if ent.adaptor == nil {
			s.replyErr(msg, errcode.NoAdaptor)
			return
		}
		res, err := ent.adaptor.Control(kind, method, msg.Payload)
		if err != nil {
			s.replyErr(msg, err)
			return
		}
		if strings.HasPrefix(method, "set_") {
			s.publishInfo(ent)
		}
		s.replyOK(msg, res)
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

func (s *service) applyConfig(ctx context.Context, cfg HALConfig) error {
	seen := map[string]struct{}{}
	var errs []error

	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		seen[d.ID] = struct{}{}

		// Unchanged devices keep their adaptor. A changed one is rebuilt
		// under the same capability ids.
		prev, exists := s.devices[d.ID]
		if exists && reflect.DeepEqual(prev.cfg, *d) {
			continue
		}

		b, ok := findBuilder(d.Type)
		if !ok {
			errs = append(errs, &errcode.E{C: errcode.Unsupported, Op: "build", Msg: d.ID + ": type " + d.Type})
			continue
		}
		out, err := b.Build(BuildInput{
			Ctx:      ctx,
			Buses:    s.i2cFactory,
			DeviceID: d.ID,
			Type:     d.Type,
			Params:   d.Params,
			BusRef:   d.BusRef,
		})
		if err != nil {
			errs = append(errs, &errcode.E{C: errcode.Of(err), Op: "build", Msg: d.ID, Err: err})
			continue
		}

		// Ensure a worker for this bus
		if out.BusID != "" {
			if _, ok := s.workers[out.BusID]; !ok {
				w := NewMeasurementWorker(WorkerConfig{}, s.results)
				w.Start(ctx)
				s.workers[out.BusID] = w
			}
		}

		// Record adaptor and publish retained capability info/state.
		entry := devEntry{adaptor: out.Adaptor, busID: out.BusID, caps: map[string]int{}, cfg: *d}
		now := timex.NowMs()
		for _, ci := range out.Adaptor.Capabilities() {
			id, ok := prev.caps[ci.Kind]
			if !ok {
				id = s.nextCapID[ci.Kind]
				s.nextCapID[ci.Kind]++
			}

			entry.caps[ci.Kind] = id
			s.capToDev[capKey{kind: ci.Kind, id: id}] = d.ID

			s.pubRet(capTopicInt(ci.Kind, id, "info"), ci.Info)
			s.pubRet(capTopicInt(ci.Kind, id, "state"), types.CapabilityStatus{Link: types.LinkUp, TsMs: now})
		}
		for kind, id := range prev.caps {
			if _, ok := entry.caps[kind]; !ok {
				s.dropCap(kind, id, now)
			}
		}
		s.devices[d.ID] = entry

		// Schedule periodic sampling for producers only
		delete(s.devPeriod, d.ID)
		delete(s.devNextDue, d.ID)
		if out.SampleEvery > 0 {
			s.devPeriod[d.ID] = out.SampleEvery
			s.devNextDue[d.ID] = time.Now().Add(minPeriodMS * time.Millisecond)
		}
	}

	// Tidy-up: remove devices not in config
	for devID, ent := range s.devices {
		if _, ok := seen[devID]; ok {
			continue
		}
		now := timex.NowMs()
		for kind, id := range ent.caps {
			s.dropCap(kind, id, now)
		}
		delete(s.devices, devID)
		delete(s.devPeriod, devID)
		delete(s.devNextDue, devID)
	}

	return errors.Join(errs...)
}

// dropCap clears a capability's retained info and marks it down.
func (s *service) dropCap(kind string, id int, now int64) {
	s.pubRet(capTopicInt(kind, id, "info"), nil)
	s.pubRet(capTopicInt(kind, id, "state"), types.CapabilityStatus{Link: types.LinkDown, TsMs: now})
	delete(s.capToDev, capKey{kind: kind, id: id})
}

// publishInfo republishes the retained info of every capability of ent.
func (s *service) publishInfo(ent devEntry) {
	for _, ci := range ent.adaptor.Capabilities() {
		if id, ok := ent.caps[ci.Kind]; ok {
			s.pubRet(capTopicInt(ci.Kind, id, "info"), ci.Info)
		}
	}
}

// -----------------------------------------------------------------------------
// Results and scheduling
// -----------------------------------------------------------------------------

func (s *service) submitMeasure(devID string, prio bool) bool {
	ent, ok := s.devices[devID]
	if !ok {
		return false
	}
	w := s.workers[ent.busID]
	if w == nil {
		return false
	}
	return w.Submit(MeasureReq{ID: devID, Adaptor: ent.adaptor, Prio: prio})
}

func (s *service) bumpDevNext(devID string, from time.Time) {
	period, ok := s.devPeriod[devID]
	if !ok {
		return
	}
	s.devNextDue[devID] = from.Add(period)
}

func (s *service) earliestDevDue() time.Time {
	var min time.Time
	for _, t := range s.devNextDue {
		if !t.IsZero() && (min.IsZero() || t.Before(min)) {
			min = t
		}
	}
	return min
}

func (s *service) handleResult(r Result) {
	ent, ok := s.devices[r.ID]
	if !ok {
		return
	}
	now := timex.NowMs()

	if r.Err != nil {
		code := string(errcode.Of(r.Err))
		for kind, id := range ent.caps {
			s.pubRet(capTopicInt(kind, id, "state"),
				types.CapabilityStatus{Link: types.LinkDegraded, Error: code, TsMs: now})
		}
		return
	}
	// Publish each reading to its mapped capability id.
	for _, rd := range r.Sample {
		id, ok := ent.caps[rd.Kind]
		if !ok {
			continue
		}
		s.conn.Publish(s.conn.NewMessage(capTopicInt(rd.Kind, id, "value"), rd.Payload, false))
		s.pubRet(capTopicInt(rd.Kind, id, "state"), types.CapabilityStatus{Link: types.LinkUp, TsMs: now})
	}
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func (s *service) publishState(level, status string, err error) {
	st := types.HALState{Level: level, Status: status, TsMs: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.pubRet(bus.Topic{"hal", "state"}, st)
}

func (s *service) replyOK(req *bus.Message, result any) {
	s.conn.Reply(req, types.Reply{OK: true, Result: result}, false)
}

func (s *service) replyErr(req *bus.Message, err error) {
	s.conn.Reply(req, types.Reply{OK: false, Error: string(errcode.Of(err))}, false)
}

func capTopicInt(kind string, id int, rest ...bus.Token) bus.Topic {
	base := bus.Topic{"hal", "capability", kind, id}
	return append(base, rest...)
}

func (s *service) pubRet(t bus.Topic, p any) {
	s.conn.Publish(s.conn.NewMessage(t, p, true))
}

func parsePeriodMS(p any) int {
	var v struct {
		PeriodMS int `json:"period_ms"`
	}
	if decodeJSON(p, &v) != nil {
		return 0
	}
	return v.PeriodMS
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case *T:
		*dst = *v
		return nil
	case T:
		*dst = v
		return nil
	default:
		// Accept maps, structs, numbers… by marshaling then decoding to T.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

func asInt(t any) (int, bool) {
	switch v := t.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
