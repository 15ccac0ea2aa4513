// Package heartbeat publishes a retained liveness record on app/heartbeat.
package heartbeat

import (
	"context"
	"time"

	"uvsense-go/bus"
	"uvsense-go/services/config"
	"uvsense-go/types"
	"uvsense-go/x/mathx"
	"uvsense-go/x/timex"
)

const (
	defaultInterval = 2 * time.Second
	maxIntervalS    = 3600
)

var Topic = bus.T("app", "heartbeat")

type Service struct {
	started time.Time
	seq     uint64
}

func (s *Service) beat(conn *bus.Connection) {
	s.seq++
	conn.Publish(conn.NewMessage(Topic, types.Heartbeat{
		Seq:     s.seq,
		UptimeS: int64(time.Since(s.started) / time.Second),
		TsMs:    timex.NowMs(),
	}, true))
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, cfgSub *bus.Subscription) {
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	s.beat(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.beat(conn)
		case msg := <-cfgSub.Channel():
			if c, ok := msg.Payload.(types.HeartbeatConfig); ok && c.IntervalS > 0 {
				tick.Reset(time.Duration(mathx.Clamp(c.IntervalS, 1, maxIntervalS)) * time.Second)
			}
		}
	}
}

// Start the heartbeat service. The interval follows config/heartbeat.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.started = time.Now()
	cfgSub := conn.Subscribe(config.Topic("heartbeat"))
	go s.serviceLoop(ctx, conn, cfgSub)
	return nil
}
