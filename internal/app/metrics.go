package app

import (
	"uvsense-go/types"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	reg *prometheus.Registry

	uvCounts   *prometheus.GaugeVec
	uvIndex    *prometheus.GaugeVec
	uvRaw      *prometheus.GaugeVec
	samples    *prometheus.CounterVec
	readErrors *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		uvCounts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uvsense_uv_counts",
			Help: "Compensated UVA/UVB channel in sensor counts.",
		}, []string{"channel", "id"}),
		uvIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uvsense_uv_index",
			Help: "Calibrated UV index.",
		}, []string{"id"}),
		uvRaw: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uvsense_uv_raw",
			Help: "Raw channel register value.",
		}, []string{"register", "id"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uvsense_samples_total",
			Help: "UV index samples received from the HAL.",
		}, []string{"id"}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uvsense_read_errors_total",
			Help: "Capability state changes to degraded, by error code.",
		}, []string{"kind", "id", "code"}),
	}
	m.reg.MustRegister(m.uvCounts, m.uvIndex, m.uvRaw, m.samples, m.readErrors)
	return m
}

func (m *metrics) observe(kind, id string, payload any) {
	switch v := payload.(type) {
	case types.UVValue:
		m.uvCounts.With(prometheus.Labels{"channel": kind, "id": id}).Set(v.Counts)
	case types.UVIndexValue:
		m.uvIndex.With(prometheus.Labels{"id": id}).Set(v.Index)
		m.samples.With(prometheus.Labels{"id": id}).Inc()
	case types.UVRawValue:
		for reg, val := range map[string]uint16{"uva": v.UVA, "uvb": v.UVB, "uvcomp1": v.UVComp1, "uvcomp2": v.UVComp2} {
			m.uvRaw.With(prometheus.Labels{"register": reg, "id": id}).Set(float64(val))
		}
	}
}

func (m *metrics) readError(kind, id, code string) {
	m.readErrors.With(prometheus.Labels{"kind": kind, "id": id, "code": code}).Inc()
}

// HandleMetrics serves the registry in the prometheus text format.
func (app *App) HandleMetrics() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(app.metrics.reg, promhttp.HandlerOpts{}))
}
