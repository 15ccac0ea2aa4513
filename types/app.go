package types

// ------------------------
// Application liveness
// ------------------------

// HeartbeatConfig is published on config/heartbeat.
type HeartbeatConfig struct {
	IntervalS int `json:"interval" yaml:"interval"`
}

// Heartbeat is published retained on app/heartbeat.
type Heartbeat struct {
	Seq     uint64 `json:"seq"`
	UptimeS int64  `json:"uptime_s"`
	TsMs    int64  `json:"ts_ms"`
}
