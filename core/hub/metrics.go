package hub

import (
	"io"

	gometrics "github.com/rcrowley/go-metrics"
)

const (
	metricConnections = "hub.connections"
	metricAccepted    = "hub.connections.accepted"
	metricReceived    = "hub.messages.received"
	metricDropped     = "hub.messages.dropped"
	metricRejected    = "hub.rejected"
	metricRate        = "hub.messages.rate"
)

// Stats is a point-in-time snapshot of hub counters.
type Stats struct {
	Connections      int64   // live connections
	Accepted         int64   // connections accepted since start
	MessagesReceived int64   // inbound messages emitted
	MessagesDropped  int64   // inbound messages dropped by the rate limiter
	Rejected         int64   // requests refused before upgrade
	MessageRate1     float64 // one-minute moving average, messages per second
}

type metrics struct {
	reg gometrics.Registry
}

func newMetrics() metrics {
	return metrics{reg: gometrics.NewRegistry()}
}

func (m metrics) incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

func (m metrics) decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}

func (m metrics) mark(name string, i int64) {
	gometrics.GetOrRegisterMeter(name, m.reg).Mark(i)
}

func (m metrics) count(name string) int64 {
	return gometrics.GetOrRegisterCounter(name, m.reg).Count()
}

func (m metrics) stop() {
	// Meters tick in a shared goroutine until stopped.
	m.reg.Each(func(_ string, v any) {
		if meter, ok := v.(gometrics.Meter); ok {
			meter.Stop()
		}
	})
}

func (m metrics) snapshot() Stats {
	return Stats{
		Connections:      m.count(metricConnections),
		Accepted:         m.count(metricAccepted),
		MessagesReceived: m.count(metricReceived),
		MessagesDropped:  m.count(metricDropped),
		Rejected:         m.count(metricRejected),
		MessageRate1:     gometrics.GetOrRegisterMeter(metricRate, m.reg).Rate1(),
	}
}

// Metrics returns the hub's metrics registry.
func (h *Hub) Metrics() gometrics.Registry {
	return h.metrics.reg
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() Stats {
	return h.metrics.snapshot()
}

// WriteMetrics writes the registry to w as JSON once.
func (h *Hub) WriteMetrics(w io.Writer) {
	gometrics.WriteJSONOnce(h.metrics.reg, w)
}
